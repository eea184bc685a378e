package main

import "errors"

// exitError carries the process exit code a failure should produce,
// per spec.md §6's exit-code table. Subcommands that need a code other
// than the generic failure (1) return one of these.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCodeOf(err error) (int, bool) {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code, true
	}
	return 0, false
}
