// SPDX-License-Identifier: MIT
package build

import (
	"runtime/debug"
	"strings"
	"testing"
)

// resetBuild gives the test the stock defaults and no ldflags, and restores
// the package state afterwards.
func resetBuild(t *testing.T) {
	t.Helper()
	name, tm, commit, version := buildName, buildTime, buildCommit, buildVersion
	saved := *buildFlags
	read := readBuildInfo
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = name, tm, commit, version
		*buildFlags = saved
		readBuildInfo = read
	})

	buildName, buildTime, buildCommit, buildVersion = "", "", "", ""
	*buildFlags = Info{Name: "audiomap", Description: Description, Time: "unknown", Commit: "unknown", Version: "dev"}
}

var defaults = Info{Name: "audiomap", Description: Description, Time: "unknown", Commit: "unknown", Version: "dev"}

func TestInitialize(t *testing.T) {
	release := func() { buildName, buildTime, buildCommit, buildVersion = "audiomap", "2026-03-02T10:00:00Z", "9c1e4b7", "v0.3.0" }

	tests := []struct {
		name    string
		ldflags func()
		want    Info
		wantErr string
	}{
		{
			name:    "Release build",
			ldflags: release,
			want:    Info{Name: "audiomap", Description: Description, Time: "2026-03-02T10:00:00Z", Commit: "9c1e4b7", Version: "v0.3.0"},
		},
		{
			name:    "Renamed binary",
			ldflags: func() { release(); buildName = "audiomapd" },
			want:    Info{Name: "audiomapd", Description: Description, Time: "2026-03-02T10:00:00Z", Commit: "9c1e4b7", Version: "v0.3.0"},
		},
		{name: "No ldflags", ldflags: func() {}, want: defaults, wantErr: "BuildName"},
		{name: "No time", ldflags: func() { release(); buildTime = "" }, want: defaults, wantErr: "BuildTime"},
		{name: "No commit", ldflags: func() { release(); buildCommit = "" }, want: defaults, wantErr: "BuildCommit"},
		{name: "No version", ldflags: func() { release(); buildVersion = "" }, want: defaults, wantErr: "BuildVersion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetBuild(t)
			tt.ldflags()

			err := Initialize()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("Initialize() error: %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Fatalf("Initialize() = %v, want error naming %s", err, tt.wantErr)
			}
			if got := *GetBuildFlags(); got != tt.want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInitializeFromRuntime(t *testing.T) {
	tests := []struct {
		name string
		bi   *debug.BuildInfo
		want Info
	}{
		{
			name: "go install of a tagged module",
			bi: &debug.BuildInfo{
				Main: debug.Module{Path: "audiomap", Version: "v0.3.1"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "4f2a9d0"},
					{Key: "vcs.time", Value: "2026-04-11T08:30:00Z"},
					{Key: "GOOS", Value: "darwin"},
				},
			},
			want: Info{Name: "audiomap", Description: Description, Time: "2026-04-11T08:30:00Z", Commit: "4f2a9d0", Version: "v0.3.1"},
		},
		{
			name: "Checkout build keeps dev version",
			bi: &debug.BuildInfo{
				Main:     debug.Module{Path: "audiomap", Version: "(devel)"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "4f2a9d0"}},
			},
			want: Info{Name: "audiomap", Description: Description, Time: "unknown", Commit: "4f2a9d0", Version: "dev"},
		},
		{name: "Stripped binary", bi: nil, want: defaults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetBuild(t)
			readBuildInfo = func() (*debug.BuildInfo, bool) { return tt.bi, tt.bi != nil }

			InitializeFromRuntime()
			if got := *GetBuildFlags(); got != tt.want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Name: "audiomap", Description: Description, Time: "2026-03-02", Commit: "9c1e4b7", Version: "v0.3.0"}
	if got, want := i.String(), "audiomap v0.3.0 (commit 9c1e4b7, built 2026-03-02)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if defaults.Description == "" {
		t.Error("Description should be set for CLI help")
	}
}
