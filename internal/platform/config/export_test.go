package config

import "io"

// StderrForTest swaps the Exitf writer and returns the previous one.
func StderrForTest(w io.Writer) io.Writer {
	prev := stderr
	stderr = w
	return prev
}

// ExitForTest swaps the exit function and returns the previous one.
func ExitForTest(fn func(int)) func(int) {
	prev := exit
	exit = fn
	return prev
}
