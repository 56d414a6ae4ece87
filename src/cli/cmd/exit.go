package cmd

import (
	"errors"

	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/fetch"
	"github.com/sofmeright/setupenv/src/provision"
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Exit codes.
const (
	exitFailure    = 1 // build, install or I/O failure
	exitEnv        = 2 // environment or conduit problem, nothing was touched
	exitIntegrity  = 3 // digest mismatch
	exitIncomplete = 4 // half-built dependency directory, rerun with --force
	exitConfig     = 5
)

// classify wraps err with the exit code matching its cause.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	code := exitFailure
	switch {
	case errors.Is(err, env.ErrMissingVar),
		errors.Is(err, env.ErrForbiddenVar),
		errors.Is(err, env.ErrNoConduit):
		code = exitEnv
	case errors.Is(err, fetch.ErrDigestMismatch):
		code = exitIntegrity
	case errors.Is(err, provision.ErrIncomplete):
		code = exitIncomplete
	}
	return &ExitError{Code: code, Err: err}
}
