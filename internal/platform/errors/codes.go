// Package errors provides structured error handling for the bridge layers.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Call shape errors
	CodeArgument Code = "ARGUMENT_ERROR"

	// Module load errors
	CodeRegistration Code = "REGISTRATION_FAILED"

	// Handle lifecycle errors
	CodeHandleState Code = "HANDLE_INVALID_STATE"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"
)

// Fatal reports whether an error with this code aborts a module load rather
// than a single call.
func (c Code) Fatal() bool {
	switch c {
	case CodeRegistration:
		return true
	default:
		return false
	}
}

// HostKind maps a code to the error class name reported to script hosts.
func (c Code) HostKind() string {
	switch c {
	case CodeArgument:
		return "ArgumentError"
	case CodeHandleState:
		return "StateError"
	case CodeNotFound:
		return "LookupError"
	case CodeRegistration:
		return "ImportError"
	default:
		return "RuntimeError"
	}
}
