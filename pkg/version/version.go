// Package version holds build information injected with -ldflags.
package version

// Overridden at build time:
//
//	go build -ldflags "-X github.com/chmdznr/fieldsync/pkg/version.Version=v1.2.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
