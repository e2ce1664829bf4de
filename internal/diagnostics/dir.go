package diagnostics

import (
	"os"
	"path/filepath"
)

// DefaultDir reports where artifacts land for a configured log directory,
// walking the same fallback chain CreateLogFile uses: the configured
// directory when it exists, then ./logs, then ./outputs/logs, then the
// working directory. Tooling that lists or watches artifacts resolves
// through here so it always looks where the writer writes.
func DefaultDir(configured string) string {
	if configured != "" && isDir(configured) {
		return configured
	}
	for _, cand := range []string{"logs", filepath.Join("outputs", "logs")} {
		if isDir(cand) {
			return cand
		}
	}
	return "."
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
