// Package version reports build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the one-line version banner printed by `cluely version`.
func String() string {
	return fmt.Sprintf("cluely %s (commit=%s, date=%s, go=%s)", Version, commit(), Date, runtime.Version())
}

// commit falls back to the VCS revision stamped by the toolchain when no
// commit was injected at link time.
func commit() string {
	if Commit != "none" && Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) > 12 {
				return setting.Value[:12]
			}
			return setting.Value
		}
	}
	return Commit
}
