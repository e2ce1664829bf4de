// Package snapshot persists opaque in-memory state to header-verified
// files. Every snapshot begins with a fixed integrity header naming the
// producing runtime and release; a reader whose own header differs treats
// the file as foreign and discards it. Snapshots are a cache of process
// state, never the source of truth, so discarding is always safe.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

// workDirMu serializes working-directory switches. The cwd is process
// state: while one store holds the critical section nothing else may
// depend on or change the working directory.
var workDirMu sync.Mutex

// Store saves and loads snapshot files relative to a fixed working
// directory. Failures escalate through the diagnostic writer: a failed
// save is process-fatal, an unreadable existing snapshot is critical.
type Store struct {
	workDir string
	diag    *diagnostics.Writer
	logger  *logging.Logger
}

// NewStore creates a snapshot store. workDir may be empty, in which case
// paths resolve against the caller's working directory unchanged. diag may
// be nil for read-only tooling; failures are then logged instead of
// escalated.
func NewStore(workDir string, diag *diagnostics.Writer, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{workDir: workDir, diag: diag, logger: logger}
}

// Save writes the integrity header followed by the gob-encoded payload to
// path. Any failure deletes the partial file and escalates through the
// fatal handler; the returned error is only observable when the fatal
// handler's exit has been intercepted.
func (s *Store) Save(path string, payload any) error {
	if err := s.save(path, payload); err != nil {
		if s.diag != nil {
			s.diag.HandleFatal(err)
		}
		return err
	}
	return nil
}

func (s *Store) save(path string, payload any) error {
	// Payloads carrying live synchronization state would serialize
	// silently and resurrect broken. Reject them before touching disk.
	if prim := findSyncPrimitive(payload); prim != "" {
		return fmt.Errorf(
			"snapshot payload holds a live synchronization primitive (%s): domain objects must not embed lock or wait state when persisted", prim)
	}

	restore, err := s.enterWorkDir()
	if err != nil {
		return err
	}
	defer restore()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	if err := s.writeSnapshot(f, payload); err != nil {
		_ = f.Close()
		s.discard(path)
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		s.discard(path)
		return fmt.Errorf("closing snapshot %s: %w", path, err)
	}
	return nil
}

func (s *Store) writeSnapshot(w io.Writer, payload any) error {
	if _, err := io.WriteString(w, Header()); err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(payload)
}

// Load reads the snapshot at path into the value pointed to by into and
// reports whether data was loaded. All negative outcomes return false:
// a missing file and a foreign header are ordinary no-data results, while
// an unreadable or undecodable existing file is additionally escalated as
// critical and the file discarded.
func (s *Store) Load(path string, into any) bool {
	restore, err := s.enterWorkDir()
	if err != nil {
		s.logger.Warn("cannot enter snapshot working directory", "error", err)
		return false
	}
	defer restore()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no snapshot present", "path", path)
		return false
	}
	if err != nil {
		s.failLoad(path, fmt.Errorf("opening snapshot: %w", err))
		return false
	}

	want := []byte(Header())
	got := make([]byte, len(want))
	if _, err := io.ReadFull(f, got); err != nil {
		_ = f.Close()
		s.failLoad(path, fmt.Errorf("reading snapshot header: %w", err))
		return false
	}

	if !bytes.Equal(got, want) {
		_ = f.Close()
		s.logger.Warn("snapshot header mismatch, discarding",
			"path", path,
			"want", headerForLog(want),
			"got", headerForLog(got),
		)
		s.discard(path)
		return false
	}

	if err := gob.NewDecoder(f).Decode(into); err != nil {
		_ = f.Close()
		s.failLoad(path, fmt.Errorf("decoding snapshot payload: %w", err))
		return false
	}
	if err := f.Close(); err != nil {
		s.logger.Warn("closing snapshot after load", "path", path, "error", err)
	}
	return true
}

// failLoad escalates a read failure on an existing snapshot and removes
// the file so the next start does not trip over it again.
func (s *Store) failLoad(path string, err error) {
	wrapped := fmt.Errorf("loading snapshot %s: %w", path, err)
	if s.diag != nil {
		s.diag.HandleCritical(wrapped)
	} else {
		s.logger.Error("snapshot load failed", "error", wrapped)
	}
	s.discard(path)
}

func (s *Store) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not remove snapshot file", "path", path, "error", err)
	}
}

// enterWorkDir switches the process working directory to the store's and
// returns the restore func. The switch holds a process-wide lock: the cwd
// is shared by every goroutine, so nothing else may run inside the
// critical section expecting a different directory.
func (s *Store) enterWorkDir() (func(), error) {
	if s.workDir == "" {
		return func() {}, nil
	}

	workDirMu.Lock()
	prev, err := os.Getwd()
	if err != nil {
		workDirMu.Unlock()
		return nil, fmt.Errorf("reading working directory: %w", err)
	}
	if err := os.Chdir(s.workDir); err != nil {
		workDirMu.Unlock()
		return nil, fmt.Errorf("entering snapshot working directory: %w", err)
	}
	return func() {
		if err := os.Chdir(prev); err != nil {
			s.logger.Error("restoring working directory", "dir", prev, "error", err)
		}
		workDirMu.Unlock()
	}, nil
}
