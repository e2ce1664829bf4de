// Package iomux provides a best-effort fan-out writer: one Write call is
// forwarded to every registered sink in registration order. Unlike
// io.MultiWriter it never fails the caller — a broken sink must not be able
// to block diagnostics from reaching the remaining sinks.
package iomux

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Writer fans a single Write out to multiple sinks. A Writer is itself an
// io.Writer, so multiplexers compose. The zero value is not usable; use New.
type Writer struct {
	mu    sync.Mutex
	sinks []io.Writer
	fault func(error)
}

// Option configures a Writer.
type Option func(*Writer)

// WithFaultHook installs a callback invoked with sink-level failures.
// Failures are swallowed either way; the hook only makes them observable.
func WithFaultHook(fn func(error)) Option {
	return func(w *Writer) {
		w.fault = fn
	}
}

// New creates a multiplexing writer over the given sinks.
func New(sinks ...io.Writer) *Writer {
	w := &Writer{sinks: make([]io.Writer, 0, len(sinks))}
	w.sinks = append(w.sinks, sinks...)
	return w
}

// NewWithOptions creates a multiplexing writer with options applied.
func NewWithOptions(opts []Option, sinks ...io.Writer) *Writer {
	w := New(sinks...)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddSink appends a sink. Subsequent writes reach it after all sinks
// registered earlier.
func (w *Writer) AddSink(sink io.Writer) {
	if sink == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, sink)
}

// SinkCount returns the number of registered sinks.
func (w *Writer) SinkCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sinks)
}

// Write forwards p synchronously to every sink in registration order and
// returns (len(p), nil) regardless of sink outcomes. The lock is held for
// the whole fan-out, so concurrent callers never interleave mid-message
// and every sink observes writes in the same order.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		w.forward(sink, p)
	}
	return len(p), nil
}

// forward writes p to one sink, containing both error returns and panics.
func (w *Writer) forward(sink io.Writer, p []byte) {
	defer func() {
		if r := recover(); r != nil && w.fault != nil {
			w.fault(fmt.Errorf("sink panicked: %v", r))
		}
	}()
	if _, err := sink.Write(p); err != nil && w.fault != nil {
		w.fault(err)
	}
}

var (
	stderrOnce sync.Once
	stderrMux  *Writer
)

// Stderr returns the process-wide error-stream multiplexer. Its first sink
// is the process standard error stream; it is constructed once on first
// access and lives until process exit. Components accept a plain io.Writer
// and receive this instance only from default wiring, so tests can inject
// their own Writer instead.
func Stderr() *Writer {
	stderrOnce.Do(func() {
		stderrMux = New(os.Stderr)
	})
	return stderrMux
}
