// Package version carries build information injected with -ldflags.
package version

import "fmt"

var (
	// Version is the release tag. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("nftalerts %s (commit %s, built %s)", Version, Commit, BuildDate)
}
