package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
)

// reportStackBuf bounds the all-goroutines dump. Reports are written while
// the process may be dying; a fixed buffer keeps this path allocation-simple.
const reportStackBuf = 1 << 20

// writeReport renders a full diagnostic record: the failure itself, the
// capturing call stack, runtime identity, environment, module listing, host
// state and the stacks of everything still running.
func (w *Writer) writeReport(out io.Writer, label string, cause error) {
	fmt.Fprintf(out, "%s diagnostic report: %s\n", reportProduct, label)
	fmt.Fprintf(out, "generated: %s\n\n", w.nowFn().UTC().Format(time.RFC3339))

	fmt.Fprintln(out, "== error ==")
	writeError(out, cause)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "== call stack ==")
	_, _ = out.Write(debug.Stack())
	fmt.Fprintln(out)

	fmt.Fprintln(out, "== runtime ==")
	writeRuntimeIdentity(out)
	fmt.Fprintln(out)

	if w.includeEnv {
		fmt.Fprintln(out, "== environment ==")
		env := redactEnvironment()
		for _, k := range sortedKeys(env) {
			fmt.Fprintf(out, "%s=%s\n", k, env[k])
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "== search paths ==")
	writeSearchPaths(out)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "== loaded modules ==")
	writeLoadedModules(out)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "== host ==")
	writeHostState(out)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "== live units ==")
	buf := make([]byte, reportStackBuf)
	n := runtime.Stack(buf, true)
	_, _ = out.Write(buf[:n])
}

// writeError renders the failure with its unwrap chain. A nil cause is
// legal: callers sometimes capture "we got here and should not have"
// without an error value in hand.
func writeError(out io.Writer, cause error) {
	if cause == nil {
		fmt.Fprintln(out, "no exception given, current stack:")
		_, _ = out.Write(debug.Stack())
		return
	}

	fmt.Fprintf(out, "%T: %v\n", cause, cause)

	var pe *core.PanicError
	if errors.As(cause, &pe) {
		fmt.Fprintln(out, "panic stack:")
		fmt.Fprintln(out, pe.CapturedStack())
	}

	for unwrapped := errors.Unwrap(cause); unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		fmt.Fprintf(out, "caused by %T: %v\n", unwrapped, unwrapped)
	}
}

func writeRuntimeIdentity(out io.Writer) {
	fmt.Fprintf(out, "version: %s\n", core.Version)
	fmt.Fprintf(out, "runtime: %s\n", core.RuntimeTag())
	fmt.Fprintf(out, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "pid: %d\n", os.Getpid())
	fmt.Fprintf(out, "goroutines: %d\n", runtime.NumGoroutine())
}

func writeSearchPaths(out io.Writer) {
	if exe, err := os.Executable(); err == nil {
		fmt.Fprintf(out, "executable: %s\n", exe)
	}
	if wd, err := os.Getwd(); err == nil {
		fmt.Fprintf(out, "workdir: %s\n", wd)
	}
	fmt.Fprintf(out, "goroot: %s\n", runtime.GOROOT())
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		fmt.Fprintf(out, "gopath: %s\n", gopath)
	}
}

// writeLoadedModules lists the modules compiled into this binary, the Go
// analogue of a loaded-library listing.
func writeLoadedModules(out io.Writer) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Fprintln(out, "build info unavailable")
		return
	}

	fmt.Fprintf(out, "main: %s %s\n", bi.Main.Path, bi.Main.Version)
	for _, dep := range bi.Deps {
		if dep.Replace != nil {
			fmt.Fprintf(out, "%s %s => %s %s\n", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", dep.Path, dep.Version)
	}
}
