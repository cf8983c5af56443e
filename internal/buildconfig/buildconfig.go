// Package buildconfig carries the release metadata stamped into the tracer
// binary at build time via -ldflags -X.
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
)

// Version returns the stamped release version, "dev" for local builds.
func Version() string {
	return version
}

// Commit returns the stamped git commit hash.
func Commit() string {
	return commit
}
