// Package info holds the build information of the program.
package info

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Set via ldflags.
var (
	name      = "pwgen"
	version   = "dev build"
	buildTime = "[build time unknown]"
	license   = "AGPL"
)

var (
	info     *Info
	loadInfo sync.Once
)

// Info holds the programs meta information.
type Info struct {
	Name    string
	Version string
	License string

	BuildTime string
	GoVersion string

	Commit     string
	CommitTime string
	Dirty      bool
}

// GetInfo returns all the meta information about the program.
func GetInfo() *Info {
	loadInfo.Do(func() {
		info = &Info{
			Name:      name,
			Version:   version,
			License:   license,
			BuildTime: buildTime,
			GoVersion: runtime.Version(),
		}

		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range buildInfo.Settings {
				switch setting.Key {
				case "vcs.revision":
					info.Commit = setting.Value
				case "vcs.time":
					info.CommitTime = setting.Value
				case "vcs.modified":
					info.Dirty = setting.Value == "true"
				}
			}
		}

		if info.Commit == "" {
			info.Commit = "[commit unknown]"
		}
		if info.CommitTime == "" {
			info.CommitTime = "[commit time unknown]"
		}
	})

	return info
}

// Version returns the short version string.
func Version() string {
	info := GetInfo()

	if info.Dirty {
		return info.Version + "*"
	}
	return info.Version
}

// FullVersion returns the full version string, followed by the given
// feature lines.
func FullVersion(features ...string) string {
	info := GetInfo()
	builder := new(strings.Builder)

	fmt.Fprintf(builder, "%s %s\n", info.Name, Version())
	fmt.Fprintf(builder, "\nbuilt with %s (%s) %s/%s\n", info.GoVersion, runtime.Compiler, runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(builder, "  at %s\n", info.BuildTime)
	fmt.Fprintf(builder, "\ncommit %s\n", info.Commit)
	fmt.Fprintf(builder, "  at %s\n", info.CommitTime)

	if len(features) > 0 {
		builder.WriteString("\n")
		for _, feature := range features {
			fmt.Fprintf(builder, "%s\n", feature)
		}
	}

	fmt.Fprintf(builder, "\nLicensed under the %s license.", info.License)
	return builder.String()
}
