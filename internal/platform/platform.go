// SPDX-License-Identifier: MIT

// Package platform resolves the operating system the process runs on into
// the small set of platforms the device directory knows how to enumerate.
package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Platform identifies an operating system family. The values match what
// Python's platform.system() reports so callers can compare against the
// familiar strings.
type Platform string

const (
	Darwin  Platform = "Darwin"
	Windows Platform = "Windows"
	Linux   Platform = "Linux"
	Unknown Platform = "Unknown"
)

// goos is swapped in tests.
var goos = runtime.GOOS

// FromGOOS maps a runtime.GOOS value to a Platform.
func FromGOOS(s string) Platform {
	switch s {
	case "darwin":
		return Darwin
	case "windows":
		return Windows
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// Detect returns the platform of the running process. It returns Unknown and
// an error when the OS has no native adapter.
func Detect() (Platform, error) {
	p := FromGOOS(goos)
	if !p.Supported() {
		return Unknown, fmt.Errorf("unsupported operating system %q", goos)
	}
	return p, nil
}

// GOOS returns the raw runtime value Detect was based on.
func GOOS() string {
	return goos
}

// Supported reports whether p has a native adapter.
func (p Platform) Supported() bool {
	switch p {
	case Darwin, Windows, Linux:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// Info describes the host beyond the platform family.
type Info struct {
	Platform       Platform `json:"platform" yaml:"platform"`
	OS             string   `json:"os" yaml:"os"`
	Family         string   `json:"family" yaml:"family"`
	Version        string   `json:"version" yaml:"version"`
	KernelVersion  string   `json:"kernel_version" yaml:"kernel_version"`
	KernelArch     string   `json:"kernel_arch" yaml:"kernel_arch"`
	Hostname       string   `json:"hostname" yaml:"hostname"`
	Virtualization string   `json:"virtualization,omitempty" yaml:"virtualization,omitempty"`
}

// hostInfo is swapped in tests.
var hostInfo = host.InfoWithContext

// Describe collects host details for p. A failure to read host details is
// reported but the platform itself is always filled in.
func Describe(ctx context.Context, p Platform) (Info, error) {
	info := Info{Platform: p, OS: goos}

	hi, err := hostInfo(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read host info: %w", err)
	}

	info.OS = hi.OS
	info.Family = hi.PlatformFamily
	if info.Family == "" {
		info.Family = hi.Platform
	}
	info.Version = hi.PlatformVersion
	info.KernelVersion = hi.KernelVersion
	info.KernelArch = hi.KernelArch
	info.Hostname = hi.Hostname
	info.Virtualization = hi.VirtualizationSystem
	return info, nil
}
