package bridge

import "fmt"

// Value is a host-neutral argument or result. Adapters only produce and
// accept string, float64, bool, nil, *Handle and Opaque.
type Value = any

// Opaque stands in for a host value the bridge has no representation for.
type Opaque struct {
	TypeName string
}

// Kind classifies a Value for argument checking.
type Kind int

const (
	KindNil Kind = iota
	KindString
	KindNumber
	KindBool
	KindHandle
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindHandle:
		return "handle"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf returns the kind of v. Integer Go values count as numbers so that
// Go callers need not convert literals.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil:
		return KindNil
	case string:
		return KindString
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return KindNumber
	case bool:
		return KindBool
	case *Handle:
		return KindHandle
	default:
		return KindOpaque
	}
}

// typeName is the name used for v in argument error messages.
func typeName(v Value) string {
	switch t := v.(type) {
	case Opaque:
		if t.TypeName != "" {
			return t.TypeName
		}
	case *Handle:
		if t != nil && t.typ != nil {
			return t.typ.Name
		}
	}
	return KindOf(v).String()
}
