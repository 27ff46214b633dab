package config

import "time"

// Defaults and limits for the detector and its surfaces.
const (
	DefaultConfigFile  = "audiomap.yaml"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultBackend     = BackendNative
	DefaultTimeout     = 5 * time.Second // Bound on one native enumeration
	DefaultServerAddr  = "127.0.0.1:8090"
	DefaultUDPTarget   = "127.0.0.1:9090"
	DefaultUDPInterval = 2 * time.Second

	MinTimeout = 100 * time.Millisecond
	MaxTimeout = 2 * time.Minute
)

// Backends select which adapter family enumerates devices.
const (
	BackendNative    = "native"    // pactl/ALSA, system_profiler, PnP endpoints
	BackendPortAudio = "portaudio" // PortAudio host APIs
	BackendAuto      = "auto"      // native, falling back to PortAudio
)

// Config holds all runtime configuration. It is loaded from YAML, then
// environment, then command line flags.
type Config struct {
	LogLevel  string         `yaml:"log_level"`  // "debug", "info", "warn", "error" or "none"
	LogFormat string         `yaml:"log_format"` // "text" or "json"
	Detector  DetectorConfig `yaml:"detector"`
	Server    ServerConfig   `yaml:"server"`
}

// DetectorConfig controls device discovery.
type DetectorConfig struct {
	Backend         string        `yaml:"backend"`
	Timeout         time.Duration `yaml:"timeout"`
	IncludeMonitors bool          `yaml:"include_monitors"` // Keep PulseAudio monitor sources
	HostAPI         string        `yaml:"host_api"`         // PortAudio host API filter, e.g. "Windows WASAPI"
}

// ServerConfig controls the serve command.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	UDPEnabled  bool          `yaml:"udp_enabled"`
	UDPTarget   string        `yaml:"udp_target"`
	UDPInterval time.Duration `yaml:"udp_interval"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Detector: DetectorConfig{
			Backend: DefaultBackend,
			Timeout: DefaultTimeout,
		},
		Server: ServerConfig{
			Addr:        DefaultServerAddr,
			UDPTarget:   DefaultUDPTarget,
			UDPInterval: DefaultUDPInterval,
		},
	}
}
