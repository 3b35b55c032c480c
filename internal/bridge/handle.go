package bridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

// State is a handle lifecycle state.
type State int

const (
	StateAllocated State = iota + 1
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Handle is a host-visible instance of a Type. It exclusively owns its
// native value; nothing else holds a reference to it. Handles are not
// copyable and have no serialized form.
type Handle struct {
	id      uint64
	inst    *Instance
	typ     *Type
	methods map[string]*Method
	state   State
	value   any
}

// ID returns the handle's id in its instance table.
func (h *Handle) ID() uint64 {
	return h.id
}

// TypeName returns the host-visible type name.
func (h *Handle) TypeName() string {
	return h.typ.Name
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return h.state
}

// Value returns the owned native value, or nil unless initialized.
func (h *Handle) Value() any {
	return h.value
}

// Init constructs a native value from args and takes ownership of it,
// releasing any value it held. On error the handle is left unchanged.
func (h *Handle) Init(ctx context.Context, args ...Value) error {
	if h.state == StateDestroyed {
		return h.stateError()
	}

	ctx, span := h.inst.startSpan(ctx, h.inst.module.Name+"."+h.typ.Name+".init")
	defer span.End()
	span.SetAttributes(attribute.Int64("bridge.handle", int64(h.id)))

	value, err := h.typ.Init(ctx, NewArgs(h.typ.Name, args...))
	if err != nil {
		return endWithError(span, err)
	}
	if value == nil {
		return endWithError(span, apperrors.New(apperrors.CodeUnknown,
			fmt.Sprintf("%s init returned no value", h.typ.Name)))
	}

	h.reset(value)
	h.state = StateInitialized
	h.inst.logger.Debug("handle initialized", zap.String("type", h.typ.Name), zap.Uint64("handle", h.id))
	h.inst.table.notify(Event{Type: EventInitialized, Handle: h.id, TypeName: h.typ.Name, Value: value})
	return nil
}

// Invoke calls method on the owned value. Only initialized handles can be
// invoked.
func (h *Handle) Invoke(ctx context.Context, method string, args ...Value) (Value, error) {
	if h.state != StateInitialized {
		return nil, h.stateError()
	}
	m, ok := h.methods[method]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("%s object has no method %q", h.typ.Name, method),
			map[string]string{"type": h.typ.Name, "method": method},
		)
	}

	callee := h.typ.Name + "." + method
	ctx, span := h.inst.startSpan(ctx, h.inst.module.Name+"."+callee)
	defer span.End()
	span.SetAttributes(attribute.Int64("bridge.handle", int64(h.id)))

	a := NewArgs(callee, args...)
	if err := checkConvention(m.Convention, a); err != nil {
		return nil, endWithError(span, err)
	}
	result, err := m.Call(ctx, h.value, a)
	if err != nil {
		return nil, endWithError(span, err)
	}
	return result, nil
}

// Destroy releases the owned value, if any, and retires the handle. It is
// valid in every state and idempotent.
func (h *Handle) Destroy() {
	if h.state == StateDestroyed {
		return
	}
	h.reset(nil)
	h.state = StateDestroyed
	h.inst.table.remove(h.id)
	h.inst.logger.Debug("handle destroyed", zap.String("type", h.typ.Name), zap.Uint64("handle", h.id))
	h.inst.table.notify(Event{Type: EventDestroyed, Handle: h.id, TypeName: h.typ.Name})
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.typ.Name, h.state)
}

// reset swaps in value and releases the previous one.
func (h *Handle) reset(value any) {
	prev := h.value
	h.value = value
	if prev == nil {
		return
	}
	if h.typ.Release != nil {
		h.typ.Release(prev)
	}
	h.inst.table.notify(Event{Type: EventReleased, Handle: h.id, TypeName: h.typ.Name, Value: prev})
}

func (h *Handle) stateError() error {
	var message string
	switch h.state {
	case StateDestroyed:
		message = fmt.Sprintf("%s object has been destroyed", h.typ.Name)
	default:
		message = fmt.Sprintf("%s object is not initialized", h.typ.Name)
	}
	return apperrors.WithMetadata(apperrors.CodeHandleState, message, map[string]string{
		"type":  h.typ.Name,
		"state": h.state.String(),
	})
}
