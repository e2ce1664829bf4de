package snapshot

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

type runState struct {
	Revision int
	Units    []string
	Notes    map[string]string
}

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) record(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *exitRecorder) all() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

func newTestDiag(t *testing.T) (*diagnostics.Writer, string, *exitRecorder) {
	t.Helper()
	dir := t.TempDir()
	rec := &exitRecorder{}
	w := diagnostics.NewWriter(diagnostics.WriterConfig{
		Dir:     dir,
		Logger:  logging.NewNop(),
		Console: io.Discard,
		Exit:    rec.record,
	})
	return w, dir, rec
}

func reportsIn(t *testing.T, dir, base string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, base+"-*.log"))
	if err != nil {
		t.Fatalf("globbing reports: %v", err)
	}
	return matches
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	path := filepath.Join(t.TempDir(), "state.snap")
	in := runState{
		Revision: 7,
		Units:    []string{"api", "worker"},
		Notes:    map[string]string{"api": "healthy"},
	}
	if err := store.Save(path, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot file: %v", err)
	}
	if !strings.HasPrefix(string(raw), Header()) {
		t.Fatalf("snapshot does not lead with the integrity header: %q", raw[:min(len(raw), 64)])
	}

	var out runState
	if !store.Load(path, &out) {
		t.Fatal("Load returned no data for a snapshot just saved")
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}

	if codes := rec.all(); len(codes) != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
	if arts := reportsIn(t, diagDir, "critical"); len(arts) != 0 {
		t.Fatalf("unexpected critical reports %v", arts)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	var out runState
	if store.Load(filepath.Join(t.TempDir(), "absent.snap"), &out) {
		t.Fatal("Load reported data from a missing file")
	}
	if codes := rec.all(); len(codes) != 0 {
		t.Fatalf("a missing snapshot must not terminate the process, got exits %v", codes)
	}
	if arts := reportsIn(t, diagDir, "critical"); len(arts) != 0 {
		t.Fatalf("a missing snapshot must not produce a report, found %v", arts)
	}
}

func TestStoreLoadForeignHeaderDiscards(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	path := filepath.Join(t.TempDir(), "state.snap")
	foreign := strings.Repeat("x", len(Header())+16)
	if err := os.WriteFile(path, []byte(foreign), 0o644); err != nil {
		t.Fatalf("seeding foreign snapshot: %v", err)
	}

	var out runState
	if store.Load(path, &out) {
		t.Fatal("Load reported data despite a foreign header")
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("foreign snapshot was not discarded")
	}
	if arts := reportsIn(t, diagDir, "critical"); len(arts) != 0 {
		t.Fatalf("a foreign header is expected, not critical; found %v", arts)
	}
	if codes := rec.all(); len(codes) != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}

func TestStoreLoadCorruptPayloadEscalatesCritical(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := os.WriteFile(path, []byte(Header()+"\x01\x02garbage"), 0o644); err != nil {
		t.Fatalf("seeding corrupt snapshot: %v", err)
	}

	var out runState
	if store.Load(path, &out) {
		t.Fatal("Load reported data from a corrupt snapshot")
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("corrupt snapshot was not discarded")
	}
	if arts := reportsIn(t, diagDir, "critical"); len(arts) != 1 {
		t.Fatalf("want one critical report, got %v", arts)
	}
	if codes := rec.all(); len(codes) != 0 {
		t.Fatalf("a corrupt snapshot must not terminate the process, got exits %v", codes)
	}
}

func TestStoreLoadTruncatedHeaderEscalatesCritical(t *testing.T) {
	t.Parallel()
	diag, diagDir, _ := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := os.WriteFile(path, []byte(Header()[:4]), 0o644); err != nil {
		t.Fatalf("seeding truncated snapshot: %v", err)
	}

	var out runState
	if store.Load(path, &out) {
		t.Fatal("Load reported data from a truncated snapshot")
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("truncated snapshot was not discarded")
	}
	if arts := reportsIn(t, diagDir, "critical"); len(arts) != 1 {
		t.Fatalf("want one critical report, got %v", arts)
	}
}

func TestStoreSaveRejectsLiveSyncState(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	type guarded struct {
		mu sync.Mutex //nolint:unused // must survive gob's silent skip of unexported fields
		N  int
	}

	path := filepath.Join(t.TempDir(), "state.snap")
	err := store.Save(path, &guarded{N: 1})
	if err == nil {
		t.Fatal("Save accepted a payload embedding a mutex")
	}
	if !strings.Contains(err.Error(), "synchronization primitive") {
		t.Fatalf("error does not name the primitive: %v", err)
	}
	if got := rec.all(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("want fatal exit code 1, got %v", got)
	}
	if arts := reportsIn(t, diagDir, "exception"); len(arts) != 1 {
		t.Fatalf("want one exception report, got %v", arts)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatal("rejected payload still produced a snapshot file")
	}
}

func TestStoreSaveFailureIsFatal(t *testing.T) {
	t.Parallel()
	diag, diagDir, rec := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("blocking snapshot path: %v", err)
	}

	if err := store.Save(path, runState{Revision: 1}); err == nil {
		t.Fatal("Save succeeded writing over a directory")
	}
	if got := rec.all(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("want fatal exit code 1, got %v", got)
	}
	if arts := reportsIn(t, diagDir, "exception"); len(arts) != 1 {
		t.Fatalf("want one exception report, got %v", arts)
	}
}

func TestStoreResolvesAgainstWorkDir(t *testing.T) {
	diag, _, rec := newTestDiag(t)
	workDir := t.TempDir()
	store := NewStore(workDir, diag, logging.NewNop())

	before, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}

	rel := filepath.Join("state", "run.snap")
	if err := store.Save(rel, runState{Revision: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, rel)); err != nil {
		t.Fatalf("snapshot not under the working directory: %v", err)
	}

	var out runState
	if !store.Load(rel, &out) {
		t.Fatal("Load returned no data")
	}
	if out.Revision != 3 {
		t.Fatalf("Revision = %d, want 3", out.Revision)
	}

	after, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if after != before {
		t.Fatalf("working directory leaked: %q -> %q", before, after)
	}
	if codes := rec.all(); len(codes) != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}

func TestStoreInspect(t *testing.T) {
	t.Parallel()
	diag, _, _ := newTestDiag(t)
	store := NewStore("", diag, logging.NewNop())

	dir := t.TempDir()
	good := filepath.Join(dir, "good.snap")
	if err := store.Save(good, runState{Revision: 2}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	peek, err := store.Inspect(good)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !peek.Compatible {
		t.Fatal("snapshot from this process reported incompatible")
	}
	if peek.Header != strings.TrimSuffix(Header(), "\n") {
		t.Fatalf("Header = %q", peek.Header)
	}
	if peek.Size == 0 {
		t.Fatal("Size not populated")
	}

	foreign := filepath.Join(dir, "foreign.snap")
	if err := os.WriteFile(foreign, []byte("old-product v9 data"), 0o644); err != nil {
		t.Fatalf("seeding foreign snapshot: %v", err)
	}
	peek, err = store.Inspect(foreign)
	if err != nil {
		t.Fatalf("Inspect foreign: %v", err)
	}
	if peek.Compatible {
		t.Fatal("foreign snapshot reported compatible")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("Inspect must not delete: %v", err)
	}
}

func TestFindSyncPrimitive(t *testing.T) {
	t.Parallel()

	type clean struct {
		Name string
		When time.Time
	}
	type guarded struct {
		mu sync.Mutex //nolint:unused // the walk must see what gob would silently skip
		N  int
	}
	type nested struct {
		Items []map[string]*guarded
	}
	type pending struct {
		WG *sync.WaitGroup
	}
	type latched struct {
		Done sync.Once
	}
	type ringNode struct {
		Next *ringNode
	}
	ring := &ringNode{}
	ring.Next = ring

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"nil", nil, ""},
		{"plain struct", clean{Name: "a", When: time.Now()}, ""},
		{"embedded mutex", &guarded{}, "sync.Mutex"},
		{"nested in map and slice", nested{Items: []map[string]*guarded{{"x": {}}}}, "sync.Mutex"},
		{"waitgroup pointer", pending{WG: new(sync.WaitGroup)}, "sync.WaitGroup"},
		{"nil waitgroup pointer", pending{}, ""},
		{"once field", &latched{}, "sync.Once"},
		{"self referential payload", ring, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := findSyncPrimitive(tt.payload); got != tt.want {
				t.Fatalf("findSyncPrimitive() = %q, want %q", got, tt.want)
			}
		})
	}
}
