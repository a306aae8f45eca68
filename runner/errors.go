package runner

import (
	"errors"
	"fmt"
)

// StartupError reports a server that could not be started or exited during
// the startup grace period. It aborts the whole run.
type StartupError struct {
	Pid    int
	Output string // Tail of the server output, if any was captured
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server failed to start: %v", e.Err)
	}
	return fmt.Sprintf("server exited during startup (pid %d)", e.Pid)
}

// Unwrap implements the errors.Unwrap interface
func (e *StartupError) Unwrap() error {
	return e.Err
}

// ConnectError reports that no connection could be made to the server. The
// underlying dial error is kept so callers can still inspect it, e.g. with
// errors.Is(err, syscall.ECONNREFUSED).
type ConnectError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s after %d attempt(s): %v", e.Addr, e.Attempts, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the remaining fixtures.
func IsFatal(err error) bool {
	var startupErr *StartupError
	var connectErr *ConnectError
	return errors.As(err, &startupErr) || errors.As(err, &connectErr)
}
