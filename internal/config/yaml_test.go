// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "audiomap.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func noCandidates(t *testing.T) {
	t.Helper()
	orig := candidates
	candidates = func() []string { return nil }
	t.Cleanup(func() { candidates = orig })
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	noCandidates(t)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Detector.Backend != DefaultBackend || cfg.Detector.Timeout != DefaultTimeout {
		t.Errorf("expected defaults, got %+v", cfg.Detector)
	}
}

func TestLoadConfig_SearchesCandidates(t *testing.T) {
	path := writeTempConfig(t, "log_level: debug\n")
	orig := candidates
	candidates = func() []string { return []string{filepath.Join(t.TempDir(), "missing.yaml"), path} }
	t.Cleanup(func() { candidates = orig })

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("candidate file not loaded, log_level = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempConfig(t, `
log_level: warn
log_format: json
detector:
  backend: portaudio
  timeout: 2s
  host_api: Windows WASAPI
server:
  addr: 0.0.0.0:9000
  udp_enabled: true
  udp_target: 10.0.0.5:9999
  udp_interval: 500ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "json" {
		t.Errorf("log settings not loaded: %+v", cfg)
	}
	if cfg.Detector.Backend != BackendPortAudio || cfg.Detector.Timeout != 2*time.Second || cfg.Detector.HostAPI != "Windows WASAPI" {
		t.Errorf("detector settings not loaded: %+v", cfg.Detector)
	}
	if !cfg.Server.UDPEnabled || cfg.Server.UDPInterval != 500*time.Millisecond {
		t.Errorf("server settings not loaded: %+v", cfg.Server)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	noCandidates(t)
	t.Setenv("AUDIOMAP_BACKEND", "auto")
	t.Setenv("AUDIOMAP_TIMEOUT", "750ms")
	t.Setenv("AUDIOMAP_INCLUDE_MONITORS", "true")
	t.Setenv("AUDIOMAP_UDP_INTERVAL", "soon")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Detector.Backend != BackendAuto || cfg.Detector.Timeout != 750*time.Millisecond || !cfg.Detector.IncludeMonitors {
		t.Errorf("env overrides not applied: %+v", cfg.Detector)
	}
	if cfg.Server.UDPInterval != DefaultUDPInterval {
		t.Errorf("malformed duration should be ignored, got %s", cfg.Server.UDPInterval)
	}
}

func TestLoadConfig_OverridesBeforeValidate(t *testing.T) {
	path := writeTempConfig(t, "detector:\n  backend: jack\n")

	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "detector.backend") {
		t.Errorf("expected backend error without override, got %v", err)
	}

	cfg, err := LoadConfig(path, func(c *Config) { c.Detector.Backend = BackendNative })
	if err != nil {
		t.Fatalf("override should fix the file value before validation: %v", err)
	}
	if cfg.Detector.Backend != BackendNative {
		t.Errorf("Backend = %q, want %q", cfg.Detector.Backend, BackendNative)
	}

	_, err = LoadConfig(path,
		func(c *Config) { c.Detector.Backend = BackendNative },
		func(c *Config) { c.LogLevel = "loud" })
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("later override should still be validated, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"Bad backend", func(c *Config) { c.Detector.Backend = "jack" }, "detector.backend"},
		{"Timeout too small", func(c *Config) { c.Detector.Timeout = time.Millisecond }, "detector.timeout"},
		{"Bad server addr", func(c *Config) { c.Server.Addr = "8090" }, "server.addr"},
		{"UDP without port", func(c *Config) { c.Server.UDPEnabled = true; c.Server.UDPTarget = "localhost" }, "udp_target"},
		{"UDP zero interval", func(c *Config) { c.Server.UDPEnabled = true; c.Server.UDPInterval = 0 }, "udp_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.substr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.substr)
			}
		})
	}
}
