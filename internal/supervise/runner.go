package supervise

import (
	"context"
	"fmt"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

// WorkFunc is the opaque unit of work the runner supervises. The context
// carries the unit's capability token and is cancelled on termination.
type WorkFunc func(ctx context.Context) error

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger *logging.Logger

	// Diag receives per-retry exception reports and owns the fatal path
	// taken when a unit exhausts its budget.
	Diag *diagnostics.Writer

	// Termination supplies the protocol options used by Shutdown and
	// Terminate. Zero fields take the protocol defaults.
	Termination Options
}

// Runner starts and tracks supervised units. A unit failure consumes one
// retry; exhausting the budget is process-fatal, never unit-local.
type Runner struct {
	logger   *logging.Logger
	diag     *diagnostics.Writer
	term     *Terminator
	termOpts Options

	mu    sync.RWMutex
	units map[string]*Unit
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	diag := cfg.Diag
	if diag == nil {
		diag = diagnostics.NewWriter(diagnostics.WriterConfig{Logger: logger})
	}
	return &Runner{
		logger:   logger,
		diag:     diag,
		term:     NewTerminator(logger),
		termOpts: cfg.Termination,
		units:    make(map[string]*Unit),
	}
}

// Go starts work under supervision with the given retry budget and returns
// its unit. The unit is already registered and alive on return.
func (r *Runner) Go(name string, retryBudget int, work WorkFunc) *Unit {
	return r.GoContext(context.Background(), name, retryBudget, work)
}

// GoContext is Go with a parent context; cancelling it cancels the unit.
func (r *Runner) GoContext(parent context.Context, name string, retryBudget int, work WorkFunc) *Unit {
	if retryBudget < 0 {
		retryBudget = 0
	}

	ctx, cancel := context.WithCancel(parent)
	u := &Unit{
		id:        uuid.NewString(),
		name:      name,
		budget:    retryBudget,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
		state:     StateRunning,
	}
	u.token = Token{id: u.id}
	u.alive.Store(true)

	ctx = WithToken(ctx, u.token)
	ctx = withUnit(ctx, u)

	r.mu.Lock()
	r.units[u.id] = u
	r.mu.Unlock()

	r.logger.Info("starting supervised unit",
		"unit", name,
		"run_id", u.id,
		"retry_budget", retryBudget,
	)

	go func() {
		final := StateStopped
		pprof.Do(ctx, pprof.Labels(unitLabel, u.id), func(ctx context.Context) {
			final = r.supervise(ctx, u, work)
		})
		r.finish(u, final)
	}()

	return u
}

// supervise is the retry loop. Each restart begins the work from scratch
// with no delay in between; one failure consumes exactly one budget unit.
func (r *Runner) supervise(ctx context.Context, u *Unit, work WorkFunc) UnitState {
	for {
		err := r.attempt(ctx, u, work)
		attempt := u.Attempts()

		if err == nil {
			r.logger.Info("supervised unit finished",
				"unit", u.name,
				"attempts", attempt,
			)
			return StateStopped
		}
		if ctx.Err() != nil {
			// Termination in progress; the failure is the cancellation
			// surfacing, not something to retry or escalate.
			r.logger.Info("supervised unit cancelled", "unit", u.name)
			return StateStopped
		}
		if core.IsCleanShutdown(err) {
			// A deliberate exit request from inside a unit stops the
			// whole process, not just the unit.
			r.diag.HandleFatal(err)
			return StateStopped
		}

		retries := attempt - 1
		r.logger.Error("supervised unit failed",
			"unit", u.name,
			"attempt", attempt,
			"retries_used", retries,
			"retry_budget", u.budget,
			"error", err,
		)

		if retries < u.budget {
			if _, werr := r.diag.WriteExceptionFile(err, "", ""); werr != nil {
				r.logger.Warn("could not write unit failure report",
					"unit", u.name,
					"error", werr,
				)
			}
			continue
		}

		r.diag.HandleFatal(fmt.Errorf("supervised unit %s exhausted retry budget (%d): %w", u.name, u.budget, err))
		return StateFailed
	}
}

// attempt runs work once, converting a panic into an error so the retry
// loop sees every failure mode the same way.
func (r *Runner) attempt(ctx context.Context, u *Unit, work WorkFunc) (err error) {
	u.attempts.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewPanicError(rec)
		}
	}()
	return work(ctx)
}

func (r *Runner) finish(u *Unit, final UnitState) {
	u.mu.Lock()
	u.state = final
	u.mu.Unlock()
	u.alive.Store(false)
	close(u.done)
}

// Lookup returns the unit with the given run id.
func (r *Runner) Lookup(id string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	return u, ok
}

// Terminate runs the termination protocol against h with the runner's
// configured options. caller is the requesting unit's token, if any.
func (r *Runner) Terminate(h Handle, caller Token) error {
	opts := r.termOpts
	opts.Caller = caller
	return r.term.Terminate(h, opts)
}

// Shutdown terminates every live unit concurrently and returns the first
// failure. Each unit gets the full two-phase protocol regardless of how
// the others fare; ctx only gates starting further terminations.
func (r *Runner) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, u := range r.liveUnits() {
		if err := ctx.Err(); err != nil {
			return err
		}
		u := u
		g.Go(func() error {
			return r.term.Terminate(u, r.termOpts)
		})
	}
	return g.Wait()
}

// Snapshot returns the status of every unit the runner has started,
// oldest first.
func (r *Runner) Snapshot() []UnitStatus {
	r.mu.RLock()
	statuses := make([]UnitStatus, 0, len(r.units))
	for _, u := range r.units {
		statuses = append(statuses, u.Status())
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].StartedAt.Equal(statuses[j].StartedAt) {
			return statuses[i].Name < statuses[j].Name
		}
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses
}

func (r *Runner) liveUnits() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		if u.Alive() {
			live = append(live, u)
		}
	}
	return live
}
