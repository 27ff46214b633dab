// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "audiomap/internal/log"

	"gopkg.in/yaml.v3"
)

// candidates returns the locations searched when no path is given.
var candidates = func() []string {
	paths := []string{DefaultConfigFile}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "audiomap", "config.yaml"))
	}
	return paths
}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// it searches the default locations and falls back to built-in defaults when
// none exists. Environment overrides come next, then overrides in order, and
// only the final result is validated.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range candidates() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: loaded %s", path)
	}

	cfg.applyEnvOverrides()
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that flags, files and environment can all set.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error, none", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}

	switch c.Detector.Backend {
	case BackendNative, BackendPortAudio, BackendAuto:
	default:
		return fmt.Errorf("detector.backend %q must be %s, %s or %s",
			c.Detector.Backend, BackendNative, BackendPortAudio, BackendAuto)
	}
	if c.Detector.Timeout < MinTimeout || c.Detector.Timeout > MaxTimeout {
		return fmt.Errorf("detector.timeout %s out of range [%s, %s]", c.Detector.Timeout, MinTimeout, MaxTimeout)
	}

	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			return fmt.Errorf("server.addr %q: %w", c.Server.Addr, err)
		}
	}
	if c.Server.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Server.UDPTarget); err != nil {
			return fmt.Errorf("server.udp_target %q: %w", c.Server.UDPTarget, err)
		}
		if c.Server.UDPInterval <= 0 {
			return fmt.Errorf("server.udp_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// applyEnvOverrides reads AUDIOMAP_* variables. Malformed values are logged
// and ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if val, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(val)
			applog.Debugf("configuration: overriding from %s: %s", key, *dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = b
			applog.Debugf("configuration: overriding from %s: %v", key, b)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				applog.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = d
			applog.Debugf("configuration: overriding from %s: %s", key, d)
		}
	}

	str("AUDIOMAP_LOG_LEVEL", &c.LogLevel)
	str("AUDIOMAP_LOG_FORMAT", &c.LogFormat)

	str("AUDIOMAP_BACKEND", &c.Detector.Backend)
	duration("AUDIOMAP_TIMEOUT", &c.Detector.Timeout)
	boolean("AUDIOMAP_INCLUDE_MONITORS", &c.Detector.IncludeMonitors)
	str("AUDIOMAP_HOST_API", &c.Detector.HostAPI)

	str("AUDIOMAP_SERVER_ADDR", &c.Server.Addr)
	boolean("AUDIOMAP_UDP_ENABLED", &c.Server.UDPEnabled)
	str("AUDIOMAP_UDP_TARGET", &c.Server.UDPTarget)
	duration("AUDIOMAP_UDP_INTERVAL", &c.Server.UDPInterval)
}
