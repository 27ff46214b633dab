// SPDX-License-Identifier: MIT
//
// Package build carries the application's build metadata: name, build time,
// commit and version. Release builds inject them with -ldflags:
//
//	go build -ldflags "-X audiomap/pkg/build.buildName=audiomap \
//	  -X audiomap/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds fall back to what the Go toolchain records in the binary.
package build

import (
	"fmt"
	"runtime/debug"
)

// Description is the one-line summary shown in CLI help.
const Description = "Cross-platform audio device directory"

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "audiomap",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

var readBuildInfo = debug.ReadBuildInfo

// Initialize validates and copies build information from ldflags variables
// into the package state. Returns an error if any required build flag is
// missing; the defaults stay in place in that case.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// InitializeFromRuntime fills commit, time and version from the build info
// the toolchain embeds. It is the fallback for binaries built without
// ldflags, e.g. via go install.
func InitializeFromRuntime() {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		buildFlags.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			buildFlags.Commit = s.Value
		case "vcs.time":
			buildFlags.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}
