package core

import "runtime"

// Version is the lifeline release tag. Set at build time via
// -ldflags "-X github.com/hugo-lorenzo-mato/lifeline/internal/core.Version=v1.2.3".
var Version = "v0.4.0"

// RuntimeTag identifies the producing runtime for artifact headers:
// toolchain version plus compiler, e.g. "go1.24.2/gc".
func RuntimeTag() string {
	return runtime.Version() + "/" + runtime.Compiler
}
