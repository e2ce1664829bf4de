package diagnostics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxArtifactBytes caps how much of an artifact ReadArtifact returns.
// Reports are bounded documents; anything past the cap is not one of ours.
var maxArtifactBytes int64 = 16 << 20

// ReadArtifact reads a log artifact for display. The open is scoped to the
// artifact's directory, so a crafted path cannot traverse out of it, and
// only regular files under the size cap are served. Artifacts are sealed
// read-only after writing; this is the matching read side.
func ReadArtifact(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid artifact path: %q", path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("artifact %s is not a regular file", base)
	}
	if info.Size() > maxArtifactBytes {
		return nil, fmt.Errorf("artifact %s is %d bytes, over the %d byte display cap", base, info.Size(), maxArtifactBytes)
	}

	return io.ReadAll(file)
}
