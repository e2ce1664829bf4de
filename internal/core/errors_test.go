package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCleanShutdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"exit request zero", &ExitRequest{}, true},
		{"exit request nonzero", &ExitRequest{Code: 3}, true},
		{"interrupt", ErrInterrupted, true},
		{"wrapped interrupt", fmt.Errorf("shutting down: %w", ErrInterrupted), true},
		{"wrapped exit request", fmt.Errorf("done: %w", &ExitRequest{Code: 0}), true},
		{"ordinary error", errors.New("boom"), false},
		{"panic error", &PanicError{Value: "boom"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsCleanShutdown(tt.err); got != tt.want {
				t.Errorf("IsCleanShutdown(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if got := ExitCode(&ExitRequest{Code: 7}); got != 7 {
		t.Errorf("expected exit code 7, got %d", got)
	}
	if got := ExitCode(fmt.Errorf("wrapped: %w", &ExitRequest{Code: 2})); got != 2 {
		t.Errorf("expected exit code 2 through wrapping, got %d", got)
	}
	if got := ExitCode(ErrInterrupted); got != 0 {
		t.Errorf("expected interrupt to map to 0, got %d", got)
	}
}

func TestPanicError(t *testing.T) {
	t.Parallel()

	err := &PanicError{Value: "index out of range", Stack: []byte("goroutine 7 [running]:")}
	if err.Error() != "panic: index out of range" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if err.CapturedStack() != "goroutine 7 [running]:" {
		t.Errorf("unexpected stack: %s", err.CapturedStack())
	}
	if IsCleanShutdown(err) {
		t.Error("panic must not count as clean shutdown")
	}
}
