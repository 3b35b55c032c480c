package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/louisbranch/greetext/internal/platform/config"
)

type testConfig struct {
	Script string `env:"CMD_TEST_SCRIPT" envDefault:"main.lua"`
	Mode   string `env:"CMD_TEST_MODE" envDefault:"run"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_SCRIPT", "env.lua")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Script, "script", cfgRef.Script, "script")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-script", "flag.lua"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Script != "flag.lua" {
		t.Fatalf("expected flag value for script, got %q", cfgRef.Script)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_SCRIPT", "configarg.lua")
	t.Setenv("CMD_TEST_MODE", "configarg-mode")

	cfgRef := testConfig{}
	fs := flag.NewFlagSet("configargs", flag.ContinueOnError)
	fs.StringVar(&cfgRef.Script, "script", "", "script")
	fs.StringVar(&cfgRef.Mode, "mode", "", "mode")
	if err := ParseConfigFromArgs(&cfgRef, fs, []string{"-script", "flag2.lua"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfgRef.Script != "flag2.lua" {
		t.Fatalf("expected parsed flag script, got %q", cfgRef.Script)
	}
	if cfgRef.Mode != "configarg-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestParseArgsWrapsUsageErrors(t *testing.T) {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	err := ParseArgs(fs, []string{"-unknown"})
	var usage *config.UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected usage error, got %v", err)
	}

	err = ParseArgs(fs, []string{"-help"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceGreet, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryRunsWithoutEndpoint(t *testing.T) {
	t.Setenv("GREETEXT_OTEL_ENDPOINT", "")

	want := errors.New("run failed")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceGreet, func(context.Context) error {
		called = true
		return want
	})
	if !called {
		t.Fatal("expected run to be called")
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected run error, got %v", err)
	}
}
