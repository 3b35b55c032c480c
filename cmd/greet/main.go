// Package main provides a CLI for running Lua scripts against the greeting
// module.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	greetcmd "github.com/louisbranch/greetext/internal/cmd/greet"
	platformcmd "github.com/louisbranch/greetext/internal/platform/cmd"
	"github.com/louisbranch/greetext/internal/platform/config"
)

func main() {
	cfg, err := greetcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	config.ExitOnError(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceGreet, func(ctx context.Context) error {
		return greetcmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		stop()
		config.Exitf("Error: %v", err)
	}
}
