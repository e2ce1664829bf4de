package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

func TestWatchDirSeesNewArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchDir(ctx, dir, logging.NewNop(), func(path string) {
			created <- path
		})
	}()

	// Give the watcher a beat to install before producing events.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	artifact := filepath.Join(dir, "exception-20260102-030405.log")
	if err := os.WriteFile(artifact, []byte("x"), 0o444); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-created:
		if path != artifact {
			t.Errorf("watch reported %q, want %q", path, artifact)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch never reported the new artifact")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WatchDir() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WatchDir did not stop after cancellation")
	}
}

func TestWatchDirMissingDirectory(t *testing.T) {
	t.Parallel()

	err := WatchDir(context.Background(), filepath.Join(t.TempDir(), "absent"), logging.NewNop(), func(string) {})
	if err == nil {
		t.Fatal("WatchDir() on missing directory returned nil error")
	}
}
