// Package version holds build information, set with -ldflags at release time:
//
//	go build -ldflags "-X github.com/ncopds/ncopds/internal/version.Version=v1.2.0"
package version

import "runtime"

// Version is the release tag. Development builds carry a -dev suffix.
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp.
var BuildTime = "unknown"

// String formats the version line shown by --version.
func String() string {
	return Version + " (" + BuildTime + ", " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
