package utils

import (
	"fmt"

	"github.com/go-stack/stack"
	"github.com/pkg/errors"
	"github.com/revel/devproxy/logger"
)

type (
	// SpawnError is returned when the backend process could not be started.
	SpawnError struct {
		Command string          // The command line that was attempted.
		Dir     string          // The working directory of the attempt.
		Stack   stack.CallStack // Where the error was raised.
		cause   error
	}

	// BindError is returned when the proxy could not listen on its address.
	BindError struct {
		Addr  string
		Stack stack.CallStack
		cause error
	}

	// BackendCrash reports a backend that exited after a successful start.
	BackendCrash struct {
		Pid      int
		ExitCode int    // -1 when the process was terminated by a signal.
		Status   string // The os.ProcessState description.
	}
)

// NewSpawnError wraps err as a SpawnError for the given command.
func NewSpawnError(err error, command, dir string) *SpawnError {
	e := &SpawnError{Command: command, Dir: dir, cause: err, Stack: logger.NewCallStack()}
	Logger.Debug("Spawn failed", "command", command, "dir", dir, "error", err, "stack", e.Stack)
	return e
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q in %s: %v", e.Command, e.Dir, e.cause)
}

// Unwrap exposes the underlying failure to errors.Is / errors.As.
func (e *SpawnError) Unwrap() error {
	return e.cause
}

// Cause implements the pkg/errors causer interface.
func (e *SpawnError) Cause() error {
	return e.cause
}

// NewBindError wraps err as a BindError for addr.
func NewBindError(err error, addr string) *BindError {
	e := &BindError{Addr: addr, cause: err, Stack: logger.NewCallStack()}
	Logger.Debug("Bind failed", "addr", addr, "error", err, "stack", e.Stack)
	return e
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.cause)
}

func (e *BindError) Unwrap() error {
	return e.cause
}

func (e *BindError) Cause() error {
	return e.cause
}

func (e *BackendCrash) Error() string {
	return fmt.Sprintf("backend (pid %d) exited: %s", e.Pid, e.Status)
}

// IsFatal reports whether err should abort a launch.
// A BackendCrash is not fatal, the proxy keeps serving without it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var crash *BackendCrash
	return !errors.As(err, &crash)
}

// Wrapf annotates err with a message, returning nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
