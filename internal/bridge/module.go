package bridge

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

// Convention is how a callable receives its arguments.
type Convention int

const (
	// NoArgs callables reject any argument before the handler runs.
	NoArgs Convention = iota
	// VarArgs callables receive every argument and validate them themselves.
	VarArgs
)

func (c Convention) String() string {
	switch c {
	case NoArgs:
		return "noargs"
	case VarArgs:
		return "varargs"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// Func implements an entry-point function.
type Func func(ctx context.Context, args Args) (Value, error)

// Function is a module-level entry point.
type Function struct {
	Name       string
	Doc        string
	Convention Convention
	Call       Func
}

// MethodFunc implements a method. self is the handle's native value.
type MethodFunc func(ctx context.Context, self any, args Args) (Value, error)

// Method is a callable reached through a handle.
type Method struct {
	Name       string
	Doc        string
	Convention Convention
	Call       MethodFunc
}

// InitFunc builds a native value from construction arguments. It must not
// keep args beyond the call.
type InitFunc func(ctx context.Context, args Args) (any, error)

// Type describes a host-visible type whose instances own one native value.
type Type struct {
	Name string
	Doc  string
	// Init constructs the native value. Required.
	Init InitFunc
	// Release is called with a native value the handle no longer owns.
	// Optional.
	Release func(value any)
	Methods []Method
}

// Module is the declarative description of everything a host sees.
type Module struct {
	Name      string
	Doc       string
	Version   string
	Functions []Function
	Types     []Type
}

// Finalize validates the module description. A module that fails to
// finalize must not be exposed to a host in any form.
func (m Module) Finalize() error {
	if err := checkName("module", m.Name, true); err != nil {
		return err
	}

	seen := make(map[string]string, len(m.Functions)+len(m.Types))
	claim := func(kind, name string) error {
		if prev, ok := seen[name]; ok {
			return registrationError(m.Name, fmt.Sprintf("%s %q collides with %s of the same name", kind, name, prev))
		}
		seen[name] = kind
		return nil
	}

	for _, fn := range m.Functions {
		if err := checkName("function", fn.Name, false); err != nil {
			return apperrors.Wrap(apperrors.CodeRegistration, "module "+m.Name, err)
		}
		if err := claim("function", fn.Name); err != nil {
			return err
		}
		if fn.Call == nil {
			return registrationError(m.Name, fmt.Sprintf("function %q has no handler", fn.Name))
		}
		if err := checkConventionValue(fn.Convention); err != nil {
			return registrationError(m.Name, fmt.Sprintf("function %q: %v", fn.Name, err))
		}
	}

	for _, typ := range m.Types {
		if err := checkName("type", typ.Name, false); err != nil {
			return apperrors.Wrap(apperrors.CodeRegistration, "module "+m.Name, err)
		}
		if err := claim("type", typ.Name); err != nil {
			return err
		}
		if typ.Init == nil {
			return registrationError(m.Name, fmt.Sprintf("type %q has no init hook", typ.Name))
		}
		methods := make(map[string]struct{}, len(typ.Methods))
		for _, method := range typ.Methods {
			if err := checkName("method", method.Name, false); err != nil {
				return apperrors.Wrap(apperrors.CodeRegistration, "module "+m.Name+" type "+typ.Name, err)
			}
			if _, ok := methods[method.Name]; ok {
				return registrationError(m.Name, fmt.Sprintf("type %q declares method %q twice", typ.Name, method.Name))
			}
			methods[method.Name] = struct{}{}
			if method.Call == nil {
				return registrationError(m.Name, fmt.Sprintf("method %s.%s has no handler", typ.Name, method.Name))
			}
			if err := checkConventionValue(method.Convention); err != nil {
				return registrationError(m.Name, fmt.Sprintf("method %s.%s: %v", typ.Name, method.Name, err))
			}
		}
	}
	return nil
}

func registrationError(module, message string) error {
	return apperrors.WithMetadata(apperrors.CodeRegistration, message, map[string]string{"module": module})
}

// checkName rejects names a host could not publish. Double-underscore names
// are reserved for module metadata fields. Module names may be dotted.
func checkName(kind, name string, dotted bool) error {
	switch {
	case name == "":
		return apperrors.New(apperrors.CodeRegistration, kind+" name is required")
	case strings.TrimSpace(name) != name || strings.ContainsAny(name, " \t\n"):
		return apperrors.New(apperrors.CodeRegistration, fmt.Sprintf("%s name %q contains whitespace", kind, name))
	case strings.HasPrefix(name, "__"):
		return apperrors.New(apperrors.CodeRegistration, fmt.Sprintf("%s name %q is reserved", kind, name))
	case !dotted && strings.Contains(name, "."):
		return apperrors.New(apperrors.CodeRegistration, fmt.Sprintf("%s name %q must not be dotted", kind, name))
	}
	return nil
}

func checkConventionValue(c Convention) error {
	switch c {
	case NoArgs, VarArgs:
		return nil
	default:
		return fmt.Errorf("unknown calling convention %s", c)
	}
}

// checkConvention applies c to args before a handler runs.
func checkConvention(c Convention, args Args) error {
	if c == NoArgs {
		return args.Expect()
	}
	return nil
}
