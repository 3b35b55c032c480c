// Package luabridge installs bridge modules into a go-lua state.
//
// A module becomes a Lua table holding its entry-point functions and one
// type table per bridge type. Type tables expose the handle lifecycle:
//
//	local g = mod.Greeting("Ada")   -- or mod.Greeting.new("Ada")
//	g:hello()
//	mod.Greeting.init(g, "Bob")     -- re-initialize in place
//	mod.Greeting.destroy(g)
//	local raw = mod.Greeting.alloc()  -- allocated, not initialized
//
// Instances are full userdata holding the *bridge.Handle. Their metatable is
// registered under "<module>.<Type>" and is locked against getmetatable and
// setmetatable from scripts.
package luabridge

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"github.com/louisbranch/greetext/internal/bridge"
	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

type options struct {
	ctx    context.Context
	global bool
}

// Option configures Install and Preload.
type Option func(*options)

// WithContext sets the context passed to every bridge call made from Lua.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithGlobal also publishes the module table as a global named after the
// module.
func WithGlobal(global bool) Option {
	return func(o *options) {
		o.global = global
	}
}

func newOptions(opts []Option) options {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Install builds the module table for inst and publishes it in
// package.loaded. It is all-or-nothing: on error no module table, global or
// type metatable created by this call remains in the state.
func Install(l *lua.State, inst *bridge.Instance, opts ...Option) error {
	if l == nil || inst == nil {
		return apperrors.New(apperrors.CodeRegistration, "lua state and module instance are required")
	}
	b := &binder{inst: inst, opts: newOptions(opts)}
	name := inst.Module().Name

	top := l.Top()
	l.PushGoFunction(func(l *lua.State) int {
		lua.Require(l, name, b.open, b.opts.global)
		return 0
	})
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		l.SetTop(top)
		b.rollback(l)
		inst.Logger().Debug("lua install failed", zap.String("module", name), zap.Error(err))
		return apperrors.Wrap(apperrors.CodeRegistration, "install module "+name, err)
	}
	inst.Logger().Debug("lua module installed", zap.String("module", name), zap.Bool("global", b.opts.global))
	return nil
}

// Preload registers inst in package.preload so that the first
// require(name) installs it. Install failures surface as Lua errors from
// require. The package library must already be open.
func Preload(l *lua.State, inst *bridge.Instance, opts ...Option) error {
	if l == nil || inst == nil {
		return apperrors.New(apperrors.CodeRegistration, "lua state and module instance are required")
	}
	name := inst.Module().Name
	l.Global("package")
	if l.TypeOf(-1) != lua.TypeTable {
		l.Pop(1)
		return apperrors.New(apperrors.CodeRegistration, "lua package library is not open")
	}
	l.Field(-1, "preload")
	l.PushGoFunction(func(l *lua.State) int {
		if err := Install(l, inst, opts...); err != nil {
			lua.Errorf(l, "%s", err.Error())
			return 0
		}
		l.Field(lua.RegistryIndex, "_LOADED")
		l.Field(-1, name)
		l.Remove(-2)
		return 1
	})
	l.SetField(-2, name)
	l.Pop(2)
	return nil
}

// MetaTableName returns the registry name of typeName's instance metatable
// within module.
func MetaTableName(module, typeName string) string {
	return module + "." + typeName
}

type binder struct {
	inst    *bridge.Instance
	opts    options
	created []string
}

// open builds the module table and leaves it on the stack.
func (b *binder) open(l *lua.State) int {
	m := b.inst.Module()

	l.NewTable()
	for _, fn := range m.Functions {
		l.PushGoFunction(b.function(fn.Name))
		l.SetField(-2, fn.Name)
	}
	for _, typ := range m.Types {
		b.registerType(l, m.Name, typ)
		l.SetField(-2, typ.Name)
	}
	l.PushString(m.Name)
	l.SetField(-2, "__name")
	l.PushString(m.Doc)
	l.SetField(-2, "__doc")
	l.PushString(m.Version)
	l.SetField(-2, "__version")
	return 1
}

// registerType creates the instance metatable and leaves the type table on
// the stack.
func (b *binder) registerType(l *lua.State, module string, typ bridge.Type) {
	meta := MetaTableName(module, typ.Name)
	if !lua.NewMetaTable(l, meta) {
		l.Pop(1)
		lua.Errorf(l, "type %s is already registered", meta)
		return
	}
	b.created = append(b.created, meta)

	l.NewTable()
	for _, method := range typ.Methods {
		l.PushGoFunction(b.method(meta, method.Name))
		l.SetField(-2, method.Name)
	}
	l.SetField(-2, "__index")
	l.PushGoFunction(b.tostring(meta))
	l.SetField(-2, "__tostring")
	l.PushGoFunction(b.destroy(meta))
	l.SetField(-2, "__gc")
	l.PushString(typ.Name)
	l.SetField(-2, "__name")
	l.PushString(meta)
	l.SetField(-2, "__metatable")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "new", Function: b.construct(meta, typ.Name, 1)},
		{Name: "alloc", Function: b.alloc(meta, typ.Name)},
		{Name: "init", Function: b.init(meta)},
		{Name: "destroy", Function: b.destroy(meta)},
	}, 0)
	l.PushString(typ.Doc)
	l.SetField(-2, "__doc")
	l.PushString(typ.Name)
	l.SetField(-2, "__name")

	l.NewTable()
	l.PushGoFunction(b.construct(meta, typ.Name, 2))
	l.SetField(-2, "__call")
	l.SetMetaTable(-2)
}

func (b *binder) rollback(l *lua.State) {
	for _, meta := range b.created {
		l.PushNil()
		l.SetField(lua.RegistryIndex, meta)
	}
	b.created = nil
}

func (b *binder) function(name string) lua.Function {
	return func(l *lua.State) int {
		result, err := b.inst.Call(b.opts.ctx, name, args(l, 1)...)
		if err != nil {
			return raise(l, err)
		}
		return b.push(l, result)
	}
}

func (b *binder) method(meta, name string) lua.Function {
	return func(l *lua.State) int {
		h := checkHandle(l, 1, meta)
		result, err := h.Invoke(b.opts.ctx, name, args(l, 2)...)
		if err != nil {
			return raise(l, err)
		}
		return b.push(l, result)
	}
}

// construct allocates and initializes a handle from the arguments starting
// at first; __call receives the type table as argument 1.
func (b *binder) construct(meta, typeName string, first int) lua.Function {
	return func(l *lua.State) int {
		h, err := b.inst.New(b.opts.ctx, typeName, args(l, first)...)
		if err != nil {
			return raise(l, err)
		}
		pushHandle(l, h, meta)
		return 1
	}
}

func (b *binder) alloc(meta, typeName string) lua.Function {
	return func(l *lua.State) int {
		h, err := b.inst.Allocate(typeName)
		if err != nil {
			return raise(l, err)
		}
		pushHandle(l, h, meta)
		return 1
	}
}

func (b *binder) init(meta string) lua.Function {
	return func(l *lua.State) int {
		h := checkHandle(l, 1, meta)
		if err := h.Init(b.opts.ctx, args(l, 2)...); err != nil {
			return raise(l, err)
		}
		return 0
	}
}

func (b *binder) destroy(meta string) lua.Function {
	return func(l *lua.State) int {
		checkHandle(l, 1, meta).Destroy()
		return 0
	}
}

func (b *binder) tostring(meta string) lua.Function {
	return func(l *lua.State) int {
		l.PushString(checkHandle(l, 1, meta).String())
		return 1
	}
}

func (b *binder) push(l *lua.State, v bridge.Value) int {
	switch t := v.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(t)
	case float64:
		l.PushNumber(t)
	case int:
		l.PushInteger(t)
	case bool:
		l.PushBoolean(t)
	case *bridge.Handle:
		pushHandle(l, t, MetaTableName(b.inst.Module().Name, t.TypeName()))
	default:
		lua.Errorf(l, "cannot return %T to Lua", v)
		return 0
	}
	return 1
}

func pushHandle(l *lua.State, h *bridge.Handle, meta string) {
	l.PushUserData(h)
	lua.SetMetaTableNamed(l, meta)
}

func checkHandle(l *lua.State, index int, meta string) *bridge.Handle {
	ud := lua.CheckUserData(l, index, meta)
	if h, ok := ud.(*bridge.Handle); ok && h != nil {
		return h
	}
	lua.ArgumentError(l, index, meta+" expected")
	return nil
}

// args converts the Lua arguments from index first to the top of the stack.
func args(l *lua.State, first int) []bridge.Value {
	top := l.Top()
	if top < first {
		return nil
	}
	values := make([]bridge.Value, 0, top-first+1)
	for i := first; i <= top; i++ {
		values = append(values, toValue(l, i))
	}
	return values
}

func toValue(l *lua.State, index int) bridge.Value {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeUserData:
		if h, ok := l.ToUserData(index).(*bridge.Handle); ok {
			return h
		}
	}
	return bridge.Opaque{TypeName: lua.TypeNameOf(l, index)}
}

// raise surfaces err as a Lua error prefixed with its host error class.
func raise(l *lua.State, err error) int {
	lua.Errorf(l, "%s", fmt.Sprintf("%s: %s", apperrors.CodeOf(err).HostKind(), err.Error()))
	return 0
}
