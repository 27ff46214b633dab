// SPDX-License-Identifier: MIT
package audiomap

import (
	"time"

	"audiomap/internal/audio"
	"audiomap/internal/config"
	"audiomap/internal/native"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Detector.
type Option func(*options)

type options struct {
	backend         string
	timeout         time.Duration
	includeMonitors bool
	hostAPI         string

	adapter     audio.Adapter
	platform    Platform
	platformSet bool
	runner      native.Runner

	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		backend: config.DefaultBackend,
		timeout: config.DefaultTimeout,
	}
}

// WithBackend selects "native", "portaudio" or "auto".
func WithBackend(backend string) Option {
	return func(o *options) { o.backend = backend }
}

// WithTimeout bounds each native enumeration.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithIncludeMonitors keeps PulseAudio monitor sources.
func WithIncludeMonitors(include bool) Option {
	return func(o *options) { o.includeMonitors = include }
}

// WithHostAPI restricts the PortAudio backend to one host API.
func WithHostAPI(name string) Option {
	return func(o *options) { o.hostAPI = name }
}

// WithAdapter replaces backend selection with a. Tests use it with
// audio.StaticAdapter.
func WithAdapter(a Adapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithPlatform overrides platform detection.
func WithPlatform(p Platform) Option {
	return func(o *options) {
		o.platform = p
		o.platformSet = true
	}
}

// WithRunner replaces the command runner of the native adapters, which
// otherwise exec pactl, system_profiler or PowerShell.
func WithRunner(r native.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithMetrics registers refresh metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithConfig applies the detector section of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.backend = cfg.Detector.Backend
		if cfg.Detector.Timeout > 0 {
			o.timeout = cfg.Detector.Timeout
		}
		o.includeMonitors = cfg.Detector.IncludeMonitors
		o.hostAPI = cfg.Detector.HostAPI
	}
}
