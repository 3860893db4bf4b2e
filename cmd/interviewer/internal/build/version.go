// Package build holds build-time version information injected via ldflags.
//
//	go build -ldflags "-X github.com/haivivi/interviewer/cmd/interviewer/internal/build.Version=v1.0.0 \
//	  -X github.com/haivivi/interviewer/cmd/interviewer/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("interviewer %s (%s) %s %s/%s",
		Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
