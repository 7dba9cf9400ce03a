// Package version holds build metadata injected with -ldflags, e.g.
// -X github.com/MeKo-Tech/idextract/internal/version.Version=v1.2.0.
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("idextract %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
