// Package greetmod binds the greeting library as the "_greeting" module and
// ships the "greetext" script package on top of it.
package greetmod

import (
	"context"
	_ "embed"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/greetext/internal/bridge"
	"github.com/louisbranch/greetext/internal/bridge/luabridge"
	"github.com/louisbranch/greetext/internal/greeting"
	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

const (
	// ModuleName is the native module name.
	ModuleName = "_greeting"
	// PackageName is the script package wrapping the native module.
	PackageName = "greetext"
	// Version is reported as __version by the module and __version__ by the
	// package.
	Version = "0.1.0.dev0"
)

//go:embed lua/greetext.lua
var packageSource string

// Module returns the bridge description of the greeting library.
func Module() bridge.Module {
	return bridge.Module{
		Name:    ModuleName,
		Doc:     "Greeting extension demo.",
		Version: Version,
		Functions: []bridge.Function{
			{
				Name:       "hello",
				Doc:        "Return a greeting.",
				Convention: bridge.NoArgs,
				Call: func(context.Context, bridge.Args) (bridge.Value, error) {
					return greeting.Hello(), nil
				},
			},
		},
		Types: []bridge.Type{
			{
				Name: "Greeting",
				Doc:  "A personalized greeting.",
				Init: initGreeting,
				Methods: []bridge.Method{
					{
						Name:       "hello",
						Doc:        "Return a greeting.",
						Convention: bridge.NoArgs,
						Call:       greetingHello,
					},
				},
			},
		},
	}
}

func initGreeting(_ context.Context, args bridge.Args) (any, error) {
	if err := args.Expect(bridge.KindString); err != nil {
		return nil, err
	}
	return greeting.New(args.String(0)), nil
}

func greetingHello(_ context.Context, self any, _ bridge.Args) (bridge.Value, error) {
	g, ok := self.(*greeting.Greeting)
	if !ok || g == nil {
		return nil, apperrors.New(apperrors.CodeHandleState, "Greeting object is not initialized")
	}
	return g.Hello(), nil
}

// Load finalizes the greeting module.
func Load(opts ...bridge.Option) (*bridge.Instance, error) {
	return bridge.Load(Module(), opts...)
}

// Open makes both "_greeting" and "greetext" requirable in l. The returned
// instance owns every Greeting handle created from l; close it when done
// with the state.
func Open(l *lua.State, opts ...luabridge.Option) (*bridge.Instance, error) {
	return OpenWith(l, nil, opts...)
}

// OpenWith is Open with bridge options for the module instance.
func OpenWith(l *lua.State, bridgeOpts []bridge.Option, opts ...luabridge.Option) (*bridge.Instance, error) {
	inst, err := Load(bridgeOpts...)
	if err != nil {
		return nil, err
	}
	if err := luabridge.Preload(l, inst, opts...); err != nil {
		_ = inst.Close()
		return nil, err
	}
	if err := preloadPackage(l); err != nil {
		_ = inst.Close()
		return nil, err
	}
	return inst, nil
}

func preloadPackage(l *lua.State) error {
	top := l.Top()
	l.Global("package")
	l.Field(-1, "preload")
	if err := lua.LoadString(l, packageSource); err != nil {
		l.SetTop(top)
		return apperrors.Wrap(apperrors.CodeRegistration, "load "+PackageName+" package", err)
	}
	l.SetField(-2, PackageName)
	l.Pop(2)
	return nil
}
