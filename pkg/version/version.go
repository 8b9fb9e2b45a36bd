// Package version holds the build metadata of the inproxy binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is injected at build time via -ldflags "-X .../pkg/version.Version=..."
	Version = "dev"
	// GitCommit is injected at build time.
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the injected metadata. Without ldflags the commit is
// taken from the VCS stamp the Go toolchain embeds.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "unknown":
				info.GitCommit = s.Value
			case s.Key == "vcs.time" && info.BuildDate == "unknown":
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("inproxy %s (commit %s, built %s, %s %s)", b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}

// Fields returns the metadata as zap SugaredLogger key/value pairs.
func (b BuildInfo) Fields() []interface{} {
	return []interface{}{
		"version", b.Version,
		"gitCommit", b.GitCommit,
		"buildDate", b.BuildDate,
		"goVersion", b.GoVersion,
		"platform", b.Platform,
	}
}
