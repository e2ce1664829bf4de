// Package diagnostics captures the state of a failing process: fatal and
// critical errors are rendered into read-only, collision-free report files
// under a resolved log directory, and the fatal path owns orderly process
// exit. It is the one component every other layer may call when something
// has already gone wrong, so nothing in here is allowed to fail loudly.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
	"github.com/hugo-lorenzo-mato/lifeline/internal/iomux"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

const (
	reportProduct = "lifeline"

	exceptionBase  = "exception"
	unexpectedBase = "unexpected"
	criticalBase   = "critical"

	stampLayout = "20060102-150405"

	// collisionDelay sits just above the stamp granularity so a rebuilt
	// name is guaranteed to differ from the colliding one.
	collisionDelay = 1100 * time.Millisecond

	// flushPause gives sinks a moment to drain before the process exits.
	flushPause = 200 * time.Millisecond

	maxStampRetries = 5
)

// FatalRecord is the single retained trace of what killed the process.
type FatalRecord struct {
	Time       time.Time
	Err        error
	ReportPath string
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	// ResolveDir looks up the configured log directory. It may be nil,
	// return an empty path, or fail; all three fall through to the
	// directory fallback chain.
	ResolveDir func() (string, error)

	// Dir is a fixed log directory, a shorthand for a constant ResolveDir.
	Dir string

	// IncludeEnv controls whether reports carry the (redacted) environment.
	IncludeEnv bool

	Logger *logging.Logger

	// Console is where the final fatal message goes. Defaults to the
	// process error-stream multiplexer.
	Console io.Writer

	// Index receives a row per written artifact. Optional.
	Index *Index

	// Notify is invoked with the final fatal message so an interactive
	// surface can show it. Optional; suppressed on CatchFatal paths.
	Notify func(msg string)

	// Exit replaces os.Exit on the fatal path so supervising hosts can
	// intercept termination. Optional.
	Exit func(code int)
}

// Writer creates diagnostic artifacts and owns the fatal/critical error
// paths. One instance serves the whole process; file creation serializes
// on its lock so two near-simultaneous failures cannot collide.
type Writer struct {
	logger     *logging.Logger
	console    io.Writer
	resolveDir func() (string, error)
	includeEnv bool
	index      *Index
	notify     func(string)

	// origStderr is the error stream captured at construction, used to
	// reach the terminal again when someone later redirects os.Stderr.
	origStderr *os.File

	exitFn  func(int)
	nowFn   func() time.Time
	sleepFn func(time.Duration)

	lastFatal atomic.Value // *FatalRecord

	mu sync.Mutex // serializes log-file creation
}

// NewWriter creates a diagnostic writer.
func NewWriter(cfg WriterConfig) *Writer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	resolve := cfg.ResolveDir
	if resolve == nil && cfg.Dir != "" {
		dir := cfg.Dir
		resolve = func() (string, error) { return dir, nil }
	}
	console := cfg.Console
	if console == nil {
		console = iomux.Stderr()
	}
	exit := cfg.Exit
	if exit == nil {
		exit = os.Exit
	}

	return &Writer{
		logger:     logger,
		console:    console,
		resolveDir: resolve,
		includeEnv: cfg.IncludeEnv,
		index:      cfg.Index,
		notify:     cfg.Notify,
		origStderr: os.Stderr,
		exitFn:     exit,
		nowFn:      time.Now,
		sleepFn:    time.Sleep,
	}
}

// CreateLogFile writes one immutable artifact named "<base>-<stamp>.log"
// under the resolved directory and returns its absolute path. The write
// callback runs with the creation lock held. A callback failure is logged
// and swallowed: the artifact is still sealed read-only and its path still
// returned, because a partial report beats none at all. Only directory or
// file creation failures surface as errors.
func (w *Writer) CreateLogFile(base, dir string, write func(io.Writer) error) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := w.resolveTargetDir(dir)

	var f *os.File
	var path string
	for attempt := 0; ; attempt++ {
		name := fmt.Sprintf("%s-%s.log", base, w.nowFn().Format(stampLayout))
		path = filepath.Join(target, name)

		var err error
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating log artifact: %w", err)
		}
		if attempt >= maxStampRetries {
			return "", fmt.Errorf("creating log artifact: %w", err)
		}
		// Same stamp already taken; wait into the next stamp window.
		w.sleepFn(collisionDelay)
	}

	if write != nil {
		if err := write(f); err != nil {
			w.logger.Warn("log artifact write callback failed", "path", path, "error", err)
		}
	}
	if err := f.Close(); err != nil {
		w.logger.Warn("closing log artifact failed", "path", path, "error", err)
	}
	if err := os.Chmod(path, 0o444); err != nil {
		w.logger.Warn("could not seal log artifact read-only", "path", path, "error", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	if w.index != nil {
		art := Artifact{Path: abs, Base: base, CreatedAt: w.nowFn().UTC()}
		if info, statErr := os.Stat(path); statErr == nil {
			art.Size = info.Size()
		}
		if err := w.index.Record(context.Background(), art); err != nil {
			w.logger.Warn("indexing log artifact failed", "path", abs, "error", err)
		}
	}

	return abs, nil
}

// resolveTargetDir picks the artifact directory: explicit argument, then
// the configured location, then ./logs, then ./outputs/logs, then the
// current directory. An explicit directory is created on demand; the
// configured and conventional locations must already exist.
func (w *Writer) resolveTargetDir(explicit string) string {
	if explicit != "" {
		err := os.MkdirAll(explicit, 0o750)
		if err == nil {
			return explicit
		}
		w.logger.Warn("cannot use requested log directory", "dir", explicit, "error", err)
	}

	configured := ""
	if w.resolveDir != nil {
		dir, err := w.resolveDir()
		if err != nil {
			w.logger.Warn("configured log directory lookup failed", "error", err)
		} else {
			configured = dir
		}
	}
	return DefaultDir(configured)
}

// WriteExceptionFile renders a full diagnostic report for cause and writes
// it as an artifact. An empty base defaults to "exception". A nil cause is
// reported as "no exception given" with the current stack.
func (w *Writer) WriteExceptionFile(cause error, base, dir string) (string, error) {
	if base == "" {
		base = exceptionBase
	}
	return w.CreateLogFile(base, dir, func(out io.Writer) error {
		w.writeReport(out, base, cause)
		return nil
	})
}

// WriteUnexpectedOutputFile writes a plain-text artifact holding output
// that some component produced where none was expected.
func (w *Writer) WriteUnexpectedOutputFile(text, base, dir string) (string, error) {
	if base == "" {
		base = unexpectedBase
	}
	return w.CreateLogFile(base, dir, func(out io.Writer) error {
		if _, err := io.WriteString(out, text); err != nil {
			return err
		}
		if !strings.HasSuffix(text, "\n") {
			if _, err := io.WriteString(out, "\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// HandleFatal is the end of the line for unrecoverable errors: capture a
// report, announce the failure, terminate the process with status 1.
// Clean shutdowns (deliberate exit requests, interrupts) skip reporting
// and exit with their own status.
func (w *Writer) HandleFatal(err error) {
	w.handleFatal(err, true)
}

func (w *Writer) handleFatal(err error, notify bool) {
	if core.IsCleanShutdown(err) {
		w.exitFn(core.ExitCode(err))
		return
	}

	// The slot is set before reporting so a hung report writer cannot
	// erase the trace of what happened.
	rec := &FatalRecord{Time: w.nowFn(), Err: err}
	w.lastFatal.Store(rec)

	path, writeErr := w.WriteExceptionFile(err, exceptionBase, "")
	if writeErr != nil {
		w.logger.Error("could not write diagnostic report", "error", writeErr)
	} else {
		rec = &FatalRecord{Time: rec.Time, Err: err, ReportPath: path}
		w.lastFatal.Store(rec)
	}

	w.logger.SetLevel(logging.LevelFatal)
	w.logger.Fatal("fatal error", "error", err, "report", path)

	msg := formatFatalMessage(err, path)
	fmt.Fprintln(w.console, msg)
	if notify && w.notify != nil {
		w.notify(msg)
	}

	// If someone redirected os.Stderr since construction, the message
	// above went wherever they pointed it. Repeat it on the original
	// stream so a human at the terminal still sees the failure.
	if os.Stderr != w.origStderr && w.origStderr != nil {
		fmt.Fprintln(w.origStderr, msg)
	}

	w.sleepFn(flushPause)
	w.exitFn(1)
}

// HandleCritical captures a report for a serious but survivable error.
// The process keeps running.
func (w *Writer) HandleCritical(err error) {
	path, writeErr := w.WriteExceptionFile(err, criticalBase, "")
	if writeErr != nil {
		w.logger.Error("could not write diagnostic report", "error", writeErr)
	}
	w.logger.Error("critical error", "error", err, "report", path)
}

// CatchFatal runs work and routes panics and returned errors through the
// fatal path with UI notification suppressed. Intended for startup code
// that executes before any interactive surface exists.
func (w *Writer) CatchFatal(work func() error) {
	defer func() {
		if r := recover(); r != nil {
			w.handleFatal(core.NewPanicError(r), false)
		}
	}()
	if err := work(); err != nil {
		w.handleFatal(err, false)
	}
}

// LastFatal returns the record of the error that took the process down,
// or nil if no fatal error was handled.
func (w *Writer) LastFatal() *FatalRecord {
	rec, _ := w.lastFatal.Load().(*FatalRecord)
	return rec
}

func formatFatalMessage(err error, path string) string {
	msg := fmt.Sprintf("fatal error: %v", err)
	if path != "" {
		msg += " (report: " + path + ")"
	}
	return msg
}
