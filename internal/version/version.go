// Package version exposes build metadata stamped in at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/lunasherpa/luna/internal/version.Version=0.3.0
//	  -X github.com/lunasherpa/luna/internal/version.Commit=abc123
//	  -X github.com/lunasherpa/luna/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("luna %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with every outbound API request.
func UserAgent() string {
	return fmt.Sprintf("luna-sherpa/%s", Version)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
