// Package build holds build-time version information injected via ldflags.
//
//	go build -ldflags "-X github.com/haivivi/quotevoice/cmd/quotevoice/internal/build.Version=v1.0.0 \
//	  -X github.com/haivivi/quotevoice/cmd/quotevoice/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("quotevoice %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
