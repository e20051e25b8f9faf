// Package buildinfo carries version metadata stamped into the binary.
package buildinfo

// Set via -ldflags at build time, for example:
//
//	go build -ldflags "-X 'github.com/m3rciful/aviabot/core/buildinfo.Version=v0.4.0' \
//	  -X 'github.com/m3rciful/aviabot/core/buildinfo.Commit=$(git rev-parse --short HEAD)'" ./cmd/aviabot
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// Summary returns a compact "version (commit)" string for logs and /stats.
func Summary() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
