// Package core provides the shared vocabulary of the resilience layer:
// process-exit sentinels, panic capture, and the version tag stamped into
// snapshot headers and diagnostic reports. All packages import from here
// so that "clean shutdown" means the same thing everywhere.
package core

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ExitRequest signals an orderly process exit with a specific status code.
// Supervised work returns it to end the process deliberately, without
// triggering diagnostic capture. The zero code is a normal exit.
type ExitRequest struct {
	Code int
}

// Error implements the error interface.
func (e *ExitRequest) Error() string {
	return fmt.Sprintf("process exit requested (status %d)", e.Code)
}

// ErrInterrupted marks termination caused by an external interrupt signal
// (SIGINT/SIGTERM). It is a clean shutdown, not a failure.
var ErrInterrupted = errors.New("interrupted by signal")

// IsCleanShutdown reports whether err denotes a deliberate process exit or
// an external interrupt. Clean shutdowns skip all fatal reporting and exit
// with the requested status (0 for interrupts).
func IsCleanShutdown(err error) bool {
	if err == nil {
		return false
	}
	var exit *ExitRequest
	if errors.As(err, &exit) {
		return true
	}
	return errors.Is(err, ErrInterrupted)
}

// ExitCode extracts the status code a clean shutdown asks for.
// Interrupts and plain exit requests map to 0.
func ExitCode(err error) int {
	var exit *ExitRequest
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 0
}

// PanicError wraps a recovered panic value together with the goroutine
// stack captured at recovery time, so panics travel the same error paths
// as ordinary failures.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current stack around a recovered panic value.
// Call it directly inside the deferred recover so the stack still shows
// the panic site.
func NewPanicError(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// CapturedStack returns the stack recorded when the panic was recovered.
func (e *PanicError) CapturedStack() string {
	return string(e.Stack)
}
