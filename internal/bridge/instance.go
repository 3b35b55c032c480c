package bridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

const tracerName = "github.com/louisbranch/greetext/bridge"

// Instance is a finalized module ready to serve host calls.
type Instance struct {
	module    Module
	functions map[string]*Function
	types     map[string]*typeEntry
	table     *Table
	logger    *zap.Logger
	tracer    trace.Tracer
}

type typeEntry struct {
	typ     *Type
	methods map[string]*Method
}

// Option configures an Instance.
type Option func(*Instance)

// WithLogger overrides the package logger for one instance.
func WithLogger(l *zap.Logger) Option {
	return func(i *Instance) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(i *Instance) {
		if tp != nil {
			i.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithObserver subscribes o to handle lifecycle events from the start.
func WithObserver(o Observer) Option {
	return func(i *Instance) {
		if o != nil {
			i.table.Subscribe(o)
		}
	}
}

// Load finalizes m and builds its dispatch tables. On error nothing is
// returned; there is no partially loaded instance.
func Load(m Module, opts ...Option) (*Instance, error) {
	inst := &Instance{
		table:  newTable(),
		logger: Logger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(inst)
	}

	if err := m.Finalize(); err != nil {
		inst.logger.Debug("module finalize failed", zap.String("module", m.Name), zap.Error(err))
		return nil, err
	}

	m.Functions = append([]Function(nil), m.Functions...)
	types := make([]Type, len(m.Types))
	for i, typ := range m.Types {
		typ.Methods = append([]Method(nil), typ.Methods...)
		types[i] = typ
	}
	m.Types = types
	inst.module = m

	inst.functions = make(map[string]*Function, len(m.Functions))
	for i := range m.Functions {
		inst.functions[m.Functions[i].Name] = &m.Functions[i]
	}
	inst.types = make(map[string]*typeEntry, len(m.Types))
	for i := range m.Types {
		typ := &m.Types[i]
		entry := &typeEntry{typ: typ, methods: make(map[string]*Method, len(typ.Methods))}
		for j := range typ.Methods {
			entry.methods[typ.Methods[j].Name] = &typ.Methods[j]
		}
		inst.types[typ.Name] = entry
	}

	inst.logger.Debug("module loaded",
		zap.String("module", m.Name),
		zap.Int("functions", len(m.Functions)),
		zap.Int("types", len(m.Types)),
	)
	return inst, nil
}

// Module returns the finalized module description. Callers must treat it as
// read-only.
func (i *Instance) Module() Module {
	return i.module
}

// Logger returns the instance logger.
func (i *Instance) Logger() *zap.Logger {
	return i.logger
}

// Table returns the live handle table.
func (i *Instance) Table() *Table {
	return i.table
}

// Call invokes the entry point name.
func (i *Instance) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	fn, ok := i.functions[name]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("module %s has no function %q", i.module.Name, name),
			map[string]string{"module": i.module.Name, "function": name},
		)
	}

	ctx, span := i.startSpan(ctx, i.module.Name+"."+name)
	defer span.End()

	a := NewArgs(name, args...)
	if err := checkConvention(fn.Convention, a); err != nil {
		return nil, endWithError(span, err)
	}
	result, err := fn.Call(ctx, a)
	if err != nil {
		return nil, endWithError(span, err)
	}
	return result, nil
}

// Allocate returns a new handle of typeName in the allocated state.
func (i *Instance) Allocate(typeName string) (*Handle, error) {
	entry, ok := i.types[typeName]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("module %s has no type %q", i.module.Name, typeName),
			map[string]string{"module": i.module.Name, "type": typeName},
		)
	}
	h := &Handle{inst: i, typ: entry.typ, methods: entry.methods, state: StateAllocated}
	if !i.table.insert(h) {
		return nil, apperrors.New(apperrors.CodeHandleState,
			fmt.Sprintf("module %s is closed", i.module.Name))
	}
	i.logger.Debug("handle allocated", zap.String("type", typeName), zap.Uint64("handle", h.id))
	i.table.notify(Event{Type: EventAllocated, Handle: h.id, TypeName: typeName})
	return h, nil
}

// New allocates and initializes a handle. If Init fails the handle is
// destroyed before the error is returned.
func (i *Instance) New(ctx context.Context, typeName string, args ...Value) (*Handle, error) {
	h, err := i.Allocate(typeName)
	if err != nil {
		return nil, err
	}
	if err := h.Init(ctx, args...); err != nil {
		h.Destroy()
		return nil, err
	}
	return h, nil
}

// Close destroys every live handle and refuses further allocations.
func (i *Instance) Close() error {
	live := i.table.close()
	for _, h := range live {
		h.Destroy()
	}
	if len(live) > 0 {
		i.logger.Debug("module closed", zap.String("module", i.module.Name), zap.Int("destroyed", len(live)))
	}
	return nil
}

func (i *Instance) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return i.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("bridge.module", i.module.Name),
	))
}

func endWithError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("bridge.error_code", string(apperrors.CodeOf(err))))
	return err
}
