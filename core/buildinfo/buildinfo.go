// Package buildinfo exposes the version stamped into the binary.
//
//	go build -ldflags "-X github.com/m3rciful/quizbot/core/buildinfo.Version=v1.2.3 \
//	  -X github.com/m3rciful/quizbot/core/buildinfo.Commit=abcdef0 \
//	  -X github.com/m3rciful/quizbot/core/buildinfo.Date=2025-08-30T12:00:00Z"
package buildinfo

import (
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC 3339.
	Date = ""
)

var fromVCS sync.Once

// Resolve fills Commit and Date from the VCS stamp of the Go toolchain
// when ldflags left them at their defaults.
func Resolve() {
	fromVCS.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && Commit == "local" && s.Value != "":
				Commit = s.Value[:min(len(s.Value), 12)]
			case s.Key == "vcs.time" && Date == "":
				Date = s.Value
			}
		}
	})
}

// String reports "version (commit)".
func String() string {
	return Version + " (" + Commit + ")"
}
