// Package version reports the build version of the convo binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "dev"

// BuildTime is set at build time with -ldflags.
var BuildTime = "unknown"

// Revision returns the VCS revision stamped by the Go toolchain, shortened
// to 12 characters, or "" when the binary carries none.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}

// String returns the formatted version information.
func String() string {
	s := fmt.Sprintf("convo version %s (built %s, %s)", Version, BuildTime, runtime.Version())
	if rev := Revision(); rev != "" {
		s += " rev " + rev
	}
	return s
}
