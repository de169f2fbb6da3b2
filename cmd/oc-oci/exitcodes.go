package main

import "fmt"

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitInvalid = 2
)

// exitError carries the exit code for an error returned by a command.
// Errors without code, e.g. from flag parsing, are invalid arguments.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fatal(err error) error {
	return &exitError{code: exitFatal, err: err}
}

func invalid(format string, args ...any) error {
	return &exitError{code: exitInvalid, err: fmt.Errorf(format, args...)}
}
