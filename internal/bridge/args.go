package bridge

import (
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/greetext/internal/platform/errors"
)

// Args are the positional arguments of one call, tagged with the callable's
// host-visible name for error messages.
type Args struct {
	callee string
	values []Value
}

// NewArgs builds Args for callee. Adapters normally do not need this; it is
// exported for handlers that forward calls.
func NewArgs(callee string, values ...Value) Args {
	return Args{callee: callee, values: values}
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a.values)
}

// At returns argument i, or nil when i is out of range.
func (a Args) At(i int) Value {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// String returns argument i as a string. Call Expect first.
func (a Args) String(i int) string {
	s, _ := a.At(i).(string)
	return s
}

// Expect checks that the arguments match kinds exactly, in count and kind.
// Mismatches are ArgumentError-coded.
func (a Args) Expect(kinds ...Kind) error {
	if len(a.values) != len(kinds) {
		return a.countError(len(kinds))
	}
	for i, want := range kinds {
		if got := KindOf(a.values[i]); got != want {
			return apperrors.WithMetadata(apperrors.CodeArgument,
				fmt.Sprintf("%s() argument %d must be %s, not %s", a.callee, i+1, want, typeName(a.values[i])),
				map[string]string{"callee": a.callee, "position": strconv.Itoa(i + 1)},
			)
		}
	}
	return nil
}

func (a Args) countError(want int) error {
	var message string
	switch want {
	case 0:
		message = fmt.Sprintf("%s() takes no arguments", a.callee)
	case 1:
		message = fmt.Sprintf("%s() takes exactly 1 argument (%d given)", a.callee, len(a.values))
	default:
		message = fmt.Sprintf("%s() takes exactly %d arguments (%d given)", a.callee, want, len(a.values))
	}
	return apperrors.WithMetadata(apperrors.CodeArgument, message, map[string]string{
		"callee": a.callee,
		"given":  strconv.Itoa(len(a.values)),
	})
}
