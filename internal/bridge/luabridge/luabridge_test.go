package luabridge

import (
	"context"
	"testing"

	"github.com/Shopify/go-lua"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/greetext/internal/bridge"
)

type box struct {
	label string
}

func testModule(inst **bridge.Instance) bridge.Module {
	return bridge.Module{
		Name:    "test",
		Doc:     "Test module.",
		Version: "1.2.3",
		Functions: []bridge.Function{
			{
				Name:       "ping",
				Convention: bridge.NoArgs,
				Call: func(context.Context, bridge.Args) (bridge.Value, error) {
					return "pong", nil
				},
			},
			{
				Name:       "kind",
				Convention: bridge.VarArgs,
				Call: func(_ context.Context, args bridge.Args) (bridge.Value, error) {
					if opaque, ok := args.At(0).(bridge.Opaque); ok {
						return "opaque:" + opaque.TypeName, nil
					}
					return bridge.KindOf(args.At(0)).String(), nil
				},
			},
			{
				Name:       "make",
				Convention: bridge.VarArgs,
				Call: func(ctx context.Context, args bridge.Args) (bridge.Value, error) {
					return (*inst).New(ctx, "Box", args.At(0))
				},
			},
			{
				Name:       "answer",
				Convention: bridge.NoArgs,
				Call: func(context.Context, bridge.Args) (bridge.Value, error) {
					return 42, nil
				},
			},
		},
		Types: []bridge.Type{
			{
				Name: "Box",
				Doc:  "A labelled box.",
				Init: func(_ context.Context, args bridge.Args) (any, error) {
					if err := args.Expect(bridge.KindString); err != nil {
						return nil, err
					}
					return &box{label: args.String(0)}, nil
				},
				Methods: []bridge.Method{
					{
						Name:       "label",
						Convention: bridge.NoArgs,
						Call: func(_ context.Context, self any, _ bridge.Args) (bridge.Value, error) {
							return self.(*box).label, nil
						},
					},
				},
			},
		},
	}
}

func loadInstance(t *testing.T, opts ...bridge.Option) *bridge.Instance {
	t.Helper()
	var inst *bridge.Instance
	loaded, err := bridge.Load(testModule(&inst), opts...)
	require.NoError(t, err)
	inst = loaded
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func newState(t *testing.T, inst *bridge.Instance, opts ...Option) *lua.State {
	t.Helper()
	l := lua.NewState()
	lua.OpenLibraries(l)
	require.NoError(t, Install(l, inst, opts...))
	return l
}

func eval(t *testing.T, l *lua.State, src string) string {
	t.Helper()
	require.NoError(t, lua.LoadString(l, src))
	require.NoError(t, l.ProtectedCall(0, 1, 0))
	s, ok := l.ToString(-1)
	l.Pop(1)
	require.True(t, ok, "chunk did not return a string")
	return s
}

func TestInstallPublishesModule(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	require.Equal(t, "pong", eval(t, l, `return test.ping()`))
	require.Equal(t, "pong", eval(t, l, `return package.loaded.test.ping()`))
	require.Equal(t, "Test module.", eval(t, l, `return test.__doc`))
	require.Equal(t, "1.2.3", eval(t, l, `return test.__version`))
	require.Equal(t, "A labelled box.", eval(t, l, `return test.Box.__doc`))
}

func TestInstallWithoutGlobal(t *testing.T) {
	l := newState(t, loadInstance(t))

	require.Equal(t, "nil", eval(t, l, `return tostring(rawget(_G, "test"))`))
	require.Equal(t, "pong", eval(t, l, `return require("test").ping()`))
}

func TestFunctionArgumentError(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	got := eval(t, l, `
local ok, err = pcall(test.ping, 1)
return tostring(ok) .. "|" .. err`)
	require.Contains(t, got, "false|")
	require.Contains(t, got, "ArgumentError: ping() takes no arguments")

	err := lua.DoString(l, `test.ping("x")`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ping() takes no arguments")
}

func TestHandleLifecycleFromLua(t *testing.T) {
	var events []bridge.EventType
	inst := loadInstance(t, bridge.WithObserver(bridge.ObserverFunc(func(e bridge.Event) {
		events = append(events, e.Type)
	})))
	l := newState(t, inst, WithGlobal(true))

	require.Equal(t, "Ada", eval(t, l, `
box = test.Box("Ada")
return box:label()`))
	require.Equal(t, "Ada", eval(t, l, `return test.Box.new("Ada"):label()`))
	require.Equal(t, 2, inst.Table().Len())

	require.Equal(t, "Bob", eval(t, l, `
test.Box.init(box, "Bob")
return box:label()`))
	require.Contains(t, events, bridge.EventReleased)

	require.Equal(t, "Box(destroyed)", eval(t, l, `
test.Box.destroy(box)
return tostring(box)`))

	got := eval(t, l, `
local ok, err = pcall(box.label, box)
return err`)
	require.Contains(t, got, "StateError: Box object has been destroyed")
}

func TestInitFailureKeepsPreviousValue(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	got := eval(t, l, `
local box = test.Box("kept")
local ok1, err1 = pcall(test.Box.init, box)
local ok2, err2 = pcall(test.Box.init, box, 7)
local ok3, err3 = pcall(test.Box.init, box, {})
assert(not ok1 and not ok2 and not ok3)
return box:label() .. "|" .. err1 .. "|" .. err2 .. "|" .. err3`)
	require.Contains(t, got, "kept|")
	require.Contains(t, got, "ArgumentError: Box() takes exactly 1 argument (0 given)")
	require.Contains(t, got, "ArgumentError: Box() argument 1 must be string, not number")
	require.Contains(t, got, "ArgumentError: Box() argument 1 must be string, not table")
}

func TestConstructorArgumentErrors(t *testing.T) {
	inst := loadInstance(t)
	l := newState(t, inst, WithGlobal(true))

	got := eval(t, l, `
local ok, err = pcall(test.Box)
return err`)
	require.Contains(t, got, "ArgumentError: Box() takes exactly 1 argument (0 given)")
	require.Equal(t, 0, inst.Table().Len())
}

func TestAllocatedHandle(t *testing.T) {
	inst := loadInstance(t)
	l := newState(t, inst, WithGlobal(true))

	got := eval(t, l, `
local raw = test.Box.alloc()
local before = tostring(raw)
local ok, err = pcall(raw.label, raw)
test.Box.destroy(raw)
test.Box.destroy(raw)
return before .. "|" .. err .. "|" .. tostring(raw)`)
	require.Contains(t, got, "Box(allocated)|")
	require.Contains(t, got, "StateError: Box object is not initialized")
	require.Contains(t, got, "|Box(destroyed)")
	require.Equal(t, 0, inst.Table().Len())
}

func TestMetatableIsLocked(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	require.Equal(t, "test.Box", eval(t, l, `return getmetatable(test.Box("x"))`))
	got := eval(t, l, `
local ok, err = pcall(setmetatable, test.Box("x"), {})
return tostring(ok)`)
	require.Equal(t, "false", got)
}

func TestWrongSelfIsRejected(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	got := eval(t, l, `
local ok, err = pcall(test.Box.init, "not a box", "x")
return tostring(ok) .. "|" .. err`)
	require.Contains(t, got, "false|")
	require.Contains(t, got, "bad argument #1")
}

func TestMarshaling(t *testing.T) {
	l := newState(t, loadInstance(t), WithGlobal(true))

	require.Equal(t, "string", eval(t, l, `return test.kind("s")`))
	require.Equal(t, "number", eval(t, l, `return test.kind(1.5)`))
	require.Equal(t, "boolean", eval(t, l, `return test.kind(true)`))
	require.Equal(t, "nil", eval(t, l, `return test.kind(nil)`))
	require.Equal(t, "handle", eval(t, l, `return test.kind(test.Box("x"))`))
	require.Equal(t, "opaque:table", eval(t, l, `return test.kind({})`))
	require.Equal(t, "opaque:function", eval(t, l, `return test.kind(print)`))
	require.Equal(t, "made", eval(t, l, `return test.make("made"):label()`))
	require.Equal(t, "42", eval(t, l, `return tostring(test.answer())`))
}

func TestInstallIsAllOrNothing(t *testing.T) {
	var inst *bridge.Instance
	m := testModule(&inst)
	m.Types = append(m.Types, bridge.Type{
		Name: "Crate",
		Init: func(context.Context, bridge.Args) (any, error) { return struct{}{}, nil },
	})
	loaded, err := bridge.Load(m)
	require.NoError(t, err)
	inst = loaded
	defer inst.Close()

	l := lua.NewState()
	lua.OpenLibraries(l)
	lua.NewMetaTable(l, "test.Crate")
	l.Pop(1)

	err = Install(l, inst, WithGlobal(true))
	require.Error(t, err)
	require.Contains(t, err.Error(), "test.Crate is already registered")

	require.Equal(t, "nil", eval(t, l, `return tostring(package.loaded.test)`))
	require.Equal(t, "nil", eval(t, l, `return tostring(rawget(_G, "test"))`))

	lua.MetaTableNamed(l, "test.Box")
	require.True(t, l.IsNil(-1), "test.Box metatable should be rolled back")
	l.Pop(1)
	lua.MetaTableNamed(l, "test.Crate")
	require.False(t, l.IsNil(-1), "pre-existing metatable must survive")
	l.Pop(1)
}

func TestPreload(t *testing.T) {
	inst := loadInstance(t)
	l := lua.NewState()
	lua.OpenLibraries(l)
	require.NoError(t, Preload(l, inst))

	require.Equal(t, "nil", eval(t, l, `return tostring(package.loaded.test)`))
	require.Equal(t, "pong|true", eval(t, l, `
local a = require("test")
local b = require("test")
return a.ping() .. "|" .. tostring(a == b)`))
}

func TestPreloadRequiresPackageLibrary(t *testing.T) {
	l := lua.NewState()
	require.Error(t, Preload(l, loadInstance(t)))
}

func TestInstallRejectsNil(t *testing.T) {
	require.Error(t, Install(nil, nil))
}
