package snapshot

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
)

// Header returns the integrity header the current process stamps onto and
// expects back from every snapshot. It binds a snapshot to both the Go
// toolchain and the release that produced it: any version bump deliberately
// invalidates all earlier snapshots.
func Header() string {
	return fmt.Sprintf("lifeline-snapshot %s %s\n", core.RuntimeTag(), core.Version)
}

// headerForLog renders header bytes for a log attribute, with the trailing
// newline trimmed and control bytes escaped.
func headerForLog(b []byte) string {
	return strconv.Quote(strings.TrimSuffix(string(b), "\n"))
}

// Peek describes a snapshot file without decoding its payload.
type Peek struct {
	Path       string
	Size       int64
	Header     string
	Compatible bool
}

// Inspect reads the leading bytes of the snapshot at path and reports
// whether this process could load it. Unlike Load it never deletes or
// escalates; it exists for operator tooling.
func (s *Store) Inspect(path string) (*Peek, error) {
	restore, err := s.enterWorkDir()
	if err != nil {
		return nil, err
	}
	defer restore()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspecting snapshot: %w", err)
	}

	want := Header()
	got := make([]byte, len(want))
	n, err := io.ReadFull(f, got)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	got = got[:n]

	return &Peek{
		Path:       path,
		Size:       info.Size(),
		Header:     strings.TrimSuffix(string(got), "\n"),
		Compatible: string(got) == want,
	}, nil
}
