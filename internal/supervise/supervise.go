// Package supervise runs units of work as supervised goroutines with a
// bounded retry budget, and terminates them through a two-phase protocol:
// cooperative cancellation first, forced termination after a timeout. A
// unit that exhausts its retry budget takes the whole process down through
// the diagnostics fatal handler; a unit that survives forced termination
// is reported and left to its owner.
package supervise

import (
	"context"
	"net"
)

// Handle is the borrowed view of a runnable unit that the termination
// protocol operates on. The protocol never owns the unit; ownership stays
// with whichever component started it.
type Handle interface {
	Name() string
	Alive() bool
}

// GracefulCanceller is the optional cooperative-cancel capability. Absence
// is a normal, checked case: the protocol skips straight to the hard phase.
type GracefulCanceller interface {
	CancelGraceful()
}

// ForcedStopper is the optional hard-termination capability.
type ForcedStopper interface {
	Kill()
}

// StackTracer exposes the unit's current execution trace for diagnostics.
// ok is false when no trace is available, typically because the unit died
// between the liveness check and the capture.
type StackTracer interface {
	StackTrace() (trace string, ok bool)
}

// SocketCarrier exposes a network connection the unit may be blocked on.
// The hard phase closes it so readiness waits unblock.
type SocketCarrier interface {
	Socket() net.Conn
}

// TokenHolder exposes the unit's own capability token, enabling the
// self-cancel check.
type TokenHolder interface {
	Token() Token
}

// Token identifies one running unit. Work functions receive their own
// token through their context and pass it as Options.Caller when asking
// for a termination, which is how the protocol detects a unit trying to
// gracefully cancel itself.
type Token struct {
	id string
}

// IsZero reports whether the token identifies no unit.
func (t Token) IsZero() bool { return t.id == "" }

type ctxKey int

const (
	tokenCtxKey ctxKey = iota
	unitCtxKey
)

// WithToken returns a context carrying tok as the caller identity.
func WithToken(ctx context.Context, tok Token) context.Context {
	return context.WithValue(ctx, tokenCtxKey, tok)
}

// CallerToken returns the capability token of the unit that owns ctx, or
// the zero token when ctx does not belong to a supervised unit.
func CallerToken(ctx context.Context) Token {
	tok, _ := ctx.Value(tokenCtxKey).(Token)
	return tok
}

func withUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitCtxKey, u)
}

// UnitFromContext returns the unit whose work function owns ctx. Work uses
// it to adopt sockets it is about to block on.
func UnitFromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitCtxKey).(*Unit)
	return u, ok
}
