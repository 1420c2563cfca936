package core

import "fmt"

// Build metadata, injected with:
//
//	go build -ldflags "-X audiostream/core.Version=$(git describe --tags --always)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionString returns the version line printed by `audiostream version`
// and logged at startup.
func VersionString() string {
	return fmt.Sprintf("audiostream %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
