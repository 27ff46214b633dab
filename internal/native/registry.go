// SPDX-License-Identifier: MIT
package native

import (
	"io/fs"

	"audiomap/internal/audio"
	"audiomap/internal/platform"

	"github.com/gen2brain/malgo"
)

// Options tune the adapters built by ForPlatform.
type Options struct {
	// Runner executes external commands. Defaults to ExecRunner.
	Runner Runner
	// IncludeMonitors keeps PulseAudio monitor sources.
	IncludeMonitors bool
	// ASound replaces /proc/asound for the ALSA fallback.
	ASound fs.FS
}

// ForPlatform returns the OS-native adapter for p. On macOS and Windows
// miniaudio is asked first, since it reports stable device IDs and the
// default flag; the command-based adapter answers when it cannot.
func ForPlatform(p platform.Platform, opts Options) (audio.Adapter, error) {
	switch p {
	case platform.Linux:
		return &audio.FallbackAdapter{
			Primary:   NewPulseAdapter(opts.Runner, opts.IncludeMonitors),
			Secondary: NewALSAAdapter(opts.ASound),
		}, nil
	case platform.Darwin:
		return &audio.FallbackAdapter{
			Primary:   NewMalgoAdapter(malgo.BackendCoreaudio, "Core Audio"),
			Secondary: NewCoreAudioAdapter(opts.Runner),
		}, nil
	case platform.Windows:
		return &audio.FallbackAdapter{
			Primary:   NewMalgoAdapter(malgo.BackendWasapi, "Windows WASAPI"),
			Secondary: NewWASAPIAdapter(opts.Runner),
		}, nil
	}
	return nil, &audio.UnsupportedPlatformError{GOOS: platform.GOOS()}
}
