package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(1)
}

// ExitOnError exits for a non-nil err: silently with code 0 when the user
// asked for -help, with code 2 for other flag errors (the flag package has
// already printed usage), and through Exitf otherwise.
func ExitOnError(err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, flag.ErrHelp):
		exit(0)
	case isUsageError(err):
		exit(2)
	default:
		Exitf("Error: %v", err)
	}
}

// UsageError marks an error caused by invalid command-line input.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func isUsageError(err error) bool {
	var usage *UsageError
	return errors.As(err, &usage)
}
