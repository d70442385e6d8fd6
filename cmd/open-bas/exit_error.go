package main

import "fmt"

const (
	exitCodeFailure  = 1
	exitCodeUsage    = 2
	exitCodeBusy     = 75
	exitCodeCanceled = 130
)

// exitError carries the process exit code for a command failure. Silent errors
// were already reported by the command itself.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
