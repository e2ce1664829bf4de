package supervise

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
	"github.com/hugo-lorenzo-mato/lifeline/internal/netutil"
)

// Defaults for the termination protocol.
const (
	DefaultGracefulTimeout = time.Second
	DefaultPollInterval    = 10 * time.Millisecond
	DefaultHardTimeout     = time.Second
)

// ErrStillAlive is returned when a unit survives both termination phases.
// The caller owns the decision of what happens next; the protocol neither
// retries nor crashes the process.
var ErrStillAlive = errors.New("unit still alive after forced termination")

// Options tune one termination. Zero fields take the defaults.
type Options struct {
	GracefulTimeout time.Duration
	PollInterval    time.Duration
	HardTimeout     time.Duration

	// Caller is the token of the unit requesting the termination, if any.
	// A unit may not gracefully cancel itself; when Caller matches the
	// target the graceful phase is skipped.
	Caller Token
}

func (o Options) withDefaults() Options {
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = DefaultGracefulTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HardTimeout <= 0 {
		o.HardTimeout = DefaultHardTimeout
	}
	return o
}

// Terminator drives the two-phase termination protocol over a Handle.
type Terminator struct {
	logger *logging.Logger
}

// NewTerminator creates a terminator logging through logger.
func NewTerminator(logger *logging.Logger) *Terminator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Terminator{logger: logger}
}

// Terminate stops the unit behind h. An already-stopped handle returns
// immediately without invoking any capability. Otherwise the protocol asks
// for cooperative cancellation and polls liveness up to GracefulTimeout,
// then escalates: it captures the target's stack for diagnostics, closes
// any carried socket, issues the forced stop, and polls up to HardTimeout.
// A unit still alive after both phases yields ErrStillAlive; its death is
// not guaranteed on return.
func (t *Terminator) Terminate(h Handle, opts Options) error {
	if h == nil || !h.Alive() {
		return nil
	}
	opts = opts.withDefaults()

	if gc, ok := h.(GracefulCanceller); ok {
		if isSelf(h, opts.Caller) {
			t.logger.Warn("unit asked to cancel itself, skipping the graceful phase",
				"unit", h.Name(),
			)
		} else {
			gc.CancelGraceful()
			if waitStopped(h, opts.GracefulTimeout, opts.PollInterval) {
				return nil
			}
		}
	}

	if !h.Alive() {
		return nil
	}

	// The unit may die between the liveness check and the capture; an
	// unavailable trace is a soft failure, not a reason to stop.
	trace := "unavailable"
	if st, ok := h.(StackTracer); ok {
		if tr, ok := st.StackTrace(); ok {
			trace = tr
		}
	}
	t.logger.Warn("unit ignored cancellation, forcing termination",
		"unit", h.Name(),
		"caller_stack", string(debug.Stack()),
		"unit_stack", trace,
	)

	if sc, ok := h.(SocketCarrier); ok {
		netutil.SafeClose(sc.Socket())
	}
	if fs, ok := h.(ForcedStopper); ok {
		fs.Kill()
	}
	if waitStopped(h, opts.HardTimeout, opts.PollInterval) {
		return nil
	}

	t.logger.Error("failed to kill unit", "unit", h.Name())
	return fmt.Errorf("terminating unit %s: %w", h.Name(), ErrStillAlive)
}

func isSelf(h Handle, caller Token) bool {
	if caller.IsZero() {
		return false
	}
	th, ok := h.(TokenHolder)
	return ok && th.Token() == caller
}

// waitStopped polls h until it stops or the timeout elapses. It blocks the
// calling goroutine only, never the target.
func waitStopped(h Handle, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !h.Alive() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}
