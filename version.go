package wapi

import (
	"fmt"
	"runtime"
)

// Build metadata. GitCommit and BuildDate are meant to be set with
// -ldflags "-X github.com/ambiyansyah-risyal/wapi.GitCommit=...".
var (
	Version   = "v0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// UserAgent is the User-Agent header the default transport sends.
func UserAgent() string {
	return "wapi/" + Version
}

// GetVersion describes the build for the version command.
func GetVersion() string {
	return fmt.Sprintf("wapi %s (commit: %s, built: %s, go: %s, user-agent: %s)",
		Version, GitCommit, BuildDate, GoVersion, UserAgent())
}

// GetVersionInfo returns the build metadata as the labels of the
// wapi_build_info metric.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"go_version": GoVersion,
	}
}
