package supervise

import (
	"bytes"
	"runtime/pprof"
	"strings"
)

// unitLabel is the pprof label every unit goroutine runs under, so its
// stack can be isolated from the rest of the process at capture time.
const unitLabel = "lifeline_unit"

// capturedStack extracts the goroutine profile block labeled with the
// given unit id. The capture is inherently racy against the unit stopping;
// callers treat a miss as a soft failure.
func capturedStack(id string) (string, bool) {
	prof := pprof.Lookup("goroutine")
	if prof == nil {
		return "", false
	}
	var buf bytes.Buffer
	if err := prof.WriteTo(&buf, 1); err != nil {
		return "", false
	}

	marker := unitLabel + `":"` + id
	for _, block := range strings.Split(buf.String(), "\n\n") {
		if strings.Contains(block, marker) {
			return strings.TrimSpace(block), true
		}
	}
	return "", false
}
