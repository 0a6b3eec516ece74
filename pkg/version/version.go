// Package version reports build information for plantsearch.
package version

import (
	"fmt"
	"runtime"
)

// Program is the binary name used in version output.
const Program = "plantsearch"

// Build information, set via ldflags:
//
//	-X github.com/Aman-CERP/plantsearch/pkg/version.Version=$(VERSION)
//	-X github.com/Aman-CERP/plantsearch/pkg/version.Commit=$(COMMIT)
//	-X github.com/Aman-CERP/plantsearch/pkg/version.Date=$(DATE)
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Program   string `json:"program"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Program:   Program,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line version string with all build info.
func String() string {
	i := GetInfo()
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s, %s)",
		i.Program, i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

// IsDev reports whether this is a build without an injected version.
func IsDev() bool {
	return Version == "dev"
}
