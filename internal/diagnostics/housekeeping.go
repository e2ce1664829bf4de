package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

// Prune deletes the oldest ".log" artifacts under dir until at most keep
// remain, and drops their index rows. The writer never deletes artifacts
// on its own; pruning is an explicit operator action.
func Prune(ctx context.Context, dir string, keep int, index *Index, logger *logging.Logger) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if keep < 0 {
		keep = 0
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var artifacts []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			artifacts = append(artifacts, e)
		}
	}

	// Oldest first so the newest keep survive.
	sort.Slice(artifacts, func(i, j int) bool {
		infoI, errI := artifacts[i].Info()
		infoJ, errJ := artifacts[j].Info()
		if errI != nil || errJ != nil {
			return false
		}
		return infoI.ModTime().Before(infoJ.ModTime())
	})

	removed := 0
	for len(artifacts) > keep {
		path := filepath.Join(dir, artifacts[0].Name())
		err := os.Remove(path)
		if err != nil {
			// Artifacts are sealed read-only; Windows refuses to delete
			// them until the bit is cleared.
			_ = os.Chmod(path, 0o644)
			err = os.Remove(path)
		}
		if err != nil {
			logger.Warn("failed to remove old artifact", "path", path, "error", err)
		} else {
			removed++
			if index != nil {
				abs, absErr := filepath.Abs(path)
				if absErr != nil {
					abs = path
				}
				if err := index.Remove(ctx, abs); err != nil {
					logger.Warn("failed to drop artifact index row", "path", abs, "error", err)
				}
			}
		}
		artifacts = artifacts[1:]
	}

	return removed, nil
}
