// Package greet implements the greet command: run a Lua script with the
// greeting module available to require.
package greet

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/louisbranch/greetext/internal/bridge"
	"github.com/louisbranch/greetext/internal/bridge/luabridge"
	"github.com/louisbranch/greetext/internal/greetmod"
	platformcmd "github.com/louisbranch/greetext/internal/platform/cmd"
)

// Config holds greet command configuration.
type Config struct {
	Script  string `env:"GREETEXT_SCRIPT"`
	Chunk   string
	Global  bool `env:"GREETEXT_GLOBAL"`
	Verbose bool `env:"GREETEXT_VERBOSE"`
}

// ParseConfig loads env defaults and then flags into a Config. A single
// positional argument is accepted as the script path.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Script, "script", cfg.Script, "path to lua script")
	fs.StringVar(&cfg.Chunk, "e", cfg.Chunk, "lua chunk to run instead of a script")
	fs.BoolVar(&cfg.Global, "global", cfg.Global, "publish _greeting and greetext as globals")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging to stderr")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 && cfg.Script == "" {
		cfg.Script = fs.Arg(0)
	}
	return cfg, nil
}

// Run executes the greet command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Script == "" && cfg.Chunk == "" {
		return errors.New("script path or -e chunk is required")
	}

	logger := newLogger(cfg.Verbose, errOut)
	defer func() { _ = logger.Sync() }()

	l := lua.NewState()
	lua.OpenLibraries(l)
	l.PushGoFunction(printTo(out))
	l.SetGlobal("print")

	inst, err := greetmod.OpenWith(l,
		[]bridge.Option{bridge.WithLogger(logger)},
		luabridge.WithContext(ctx),
		luabridge.WithGlobal(cfg.Global),
	)
	if err != nil {
		return err
	}
	defer inst.Close()

	if cfg.Global {
		if err := lua.DoString(l, `greetext = require("greetext")`); err != nil {
			return fmt.Errorf("require greetext: %w", err)
		}
	}

	if cfg.Chunk != "" {
		if err := lua.LoadString(l, cfg.Chunk); err != nil {
			return fmt.Errorf("load lua: %w", err)
		}
	} else if err := lua.LoadFile(l, cfg.Script, ""); err != nil {
		return fmt.Errorf("load lua: %w", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	logger.Debug("script done", zap.Int("live_handles", inst.Table().Len()))
	return nil
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zap.DebugLevel,
	)
	return zap.New(core)
}

// printTo replaces Lua's print so script output goes to w.
func printTo(w io.Writer) lua.Function {
	return func(l *lua.State) int {
		n := l.Top()
		for i := 1; i <= n; i++ {
			s, ok := lua.ToStringMeta(l, i)
			if !ok {
				lua.Errorf(l, "'tostring' must return a string to 'print'")
				return 0
			}
			if i > 1 {
				_, _ = io.WriteString(w, "\t")
			}
			_, _ = io.WriteString(w, s)
			l.Pop(1)
		}
		_, _ = io.WriteString(w, "\n")
		return 0
	}
}
