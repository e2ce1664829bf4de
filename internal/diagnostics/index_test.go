package diagnostics

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex() error = %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestIndexRecordAndList(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	artifacts := []Artifact{
		{Path: "/logs/exception-a.log", Base: "exception", Size: 10, CreatedAt: base},
		{Path: "/logs/unexpected-b.log", Base: "unexpected", Size: 20, CreatedAt: base.Add(time.Minute)},
		{Path: "/logs/exception-c.log", Base: "exception", Size: 30, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, a := range artifacts {
		if err := ix.Record(ctx, a); err != nil {
			t.Fatalf("Record(%s) error = %v", a.Path, err)
		}
	}

	all, err := ix.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d rows, want 3", len(all))
	}
	if all[0].Path != "/logs/exception-c.log" {
		t.Errorf("newest first violated: got %q", all[0].Path)
	}

	exceptions, err := ix.List(ctx, "exception", 0)
	if err != nil {
		t.Fatalf("List(exception) error = %v", err)
	}
	if len(exceptions) != 2 {
		t.Fatalf("List(exception) returned %d rows, want 2", len(exceptions))
	}

	limited, err := ix.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List(limit=1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("List(limit=1) returned %d rows", len(limited))
	}
}

func TestIndexLatest(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()

	latest, err := ix.Latest(ctx, "exception")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest != nil {
		t.Fatalf("Latest() on empty index = %+v, want nil", latest)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, path := range []string{"/logs/exception-1.log", "/logs/exception-2.log"} {
		err := ix.Record(ctx, Artifact{Path: path, Base: "exception", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatal(err)
		}
	}

	latest, err = ix.Latest(ctx, "exception")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest == nil || latest.Path != "/logs/exception-2.log" {
		t.Errorf("Latest() = %+v, want exception-2", latest)
	}
}

func TestIndexUpsertOnSamePath(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := ix.Record(ctx, Artifact{Path: "/logs/x.log", Base: "exception", Size: 1, CreatedAt: stamp}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Record(ctx, Artifact{Path: "/logs/x.log", Base: "exception", Size: 99, CreatedAt: stamp}); err != nil {
		t.Fatalf("re-recording same path: %v", err)
	}

	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Count() = %d, want 1 after upsert", n)
	}

	rows, err := ix.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Size != 99 {
		t.Errorf("size after upsert = %d, want 99", rows[0].Size)
	}
}

func TestIndexRemove(t *testing.T) {
	t.Parallel()

	ix := openTestIndex(t)
	ctx := context.Background()

	if err := ix.Record(ctx, Artifact{Path: "/logs/gone.log", Base: "exception", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Remove(ctx, "/logs/gone.log"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count() = %d after remove, want 0", n)
	}
}

func TestIndexReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := ix.Record(ctx, Artifact{Path: "/logs/persist.log", Base: "exception", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenIndex(dbPath)
	if err != nil {
		t.Fatalf("reopening index: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
