package supervise

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/netutil"
)

// UnitState describes where a unit is in its lifecycle.
type UnitState string

const (
	// StateRunning means the work function is executing or retrying.
	StateRunning UnitState = "running"
	// StateStopped means the work function returned or was cancelled.
	StateStopped UnitState = "stopped"
	// StateFailed means the unit exhausted its retry budget.
	StateFailed UnitState = "failed"
)

// UnitStatus is a point-in-time view of one unit, shaped for the status API.
type UnitStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     UnitState `json:"state"`
	Alive     bool      `json:"alive"`
	Attempts  int       `json:"attempts"`
	Budget    int       `json:"retry_budget"`
	StartedAt time.Time `json:"started_at"`
}

// Unit is one supervised piece of work. It satisfies Handle plus every
// optional termination capability.
type Unit struct {
	id     string
	name   string
	budget int
	token  Token

	cancel func()
	done   chan struct{}

	alive     atomic.Bool
	attempts  atomic.Int32
	startedAt time.Time

	mu    sync.Mutex
	state UnitState
	conn  net.Conn
}

// ID returns the unit's run identifier.
func (u *Unit) ID() string { return u.id }

// Name returns the unit's name.
func (u *Unit) Name() string { return u.name }

// Alive reports whether the work function is still executing.
func (u *Unit) Alive() bool { return u.alive.Load() }

// Token returns the unit's capability token.
func (u *Unit) Token() Token { return u.token }

// Done returns a channel closed when the unit stops for good.
func (u *Unit) Done() <-chan struct{} { return u.done }

// Attempts returns how many times the work function has been started.
func (u *Unit) Attempts() int { return int(u.attempts.Load()) }

// State returns the unit's lifecycle state.
func (u *Unit) State() UnitState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// CancelGraceful asks the work function to stop by cancelling its context.
func (u *Unit) CancelGraceful() {
	u.cancel()
}

// Kill is the forced stop. A goroutine cannot be preempted, so this cancels
// the work context and closes any carried socket so blocked reads unblock;
// work that ignores both is beyond reach.
func (u *Unit) Kill() {
	u.cancel()
	netutil.SafeClose(u.Socket())
}

// AdoptSocket registers the connection the work function is about to block
// on. The termination protocol closes it during the hard phase.
func (u *Unit) AdoptSocket(conn net.Conn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.conn = conn
}

// Socket returns the adopted connection, or nil.
func (u *Unit) Socket() net.Conn {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn
}

// StackTrace captures the unit's current goroutine stack. It reports false
// once the unit has stopped or when the stack cannot be isolated.
func (u *Unit) StackTrace() (string, bool) {
	if !u.alive.Load() {
		return "", false
	}
	return capturedStack(u.id)
}

// Status reports a point-in-time view of the unit.
func (u *Unit) Status() UnitStatus {
	u.mu.Lock()
	state := u.state
	u.mu.Unlock()
	return UnitStatus{
		ID:        u.id,
		Name:      u.name,
		State:     state,
		Alive:     u.alive.Load(),
		Attempts:  u.Attempts(),
		Budget:    u.budget,
		StartedAt: u.startedAt,
	}
}
