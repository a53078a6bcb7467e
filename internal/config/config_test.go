// ABOUTME: Tests for proxy configuration loading
// ABOUTME: Covers defaults, precedence of flags, env and file, and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8928 || cfg.BufferSizeMs != 20 || cfg.LatencyMs != 40 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.RequestTimeout() != 2*time.Second {
		t.Errorf("unexpected timeout %v", cfg.RequestTimeout())
	}
	if !cfg.MDNS || cfg.TUI || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !strings.HasSuffix(cfg.Name, "-audio-proxy") {
		t.Errorf("unexpected default name %q", cfg.Name)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.yaml")
	yaml := "name: from-file\nport: 9000\nlatency_ms: 60\nplay:\n  address: bus3\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("AUDIO_PROXY_PORT", "9100")
	t.Setenv("AUDIO_PROXY_PLAY_SOURCE", "tone.wav")

	cfg, err := Load([]string{"--config", path, "--latency-ms", "80", "--mdns=false"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file beats default", cfg.Name, "from-file"},
		{"env beats file", cfg.Port, 9100},
		{"flag beats file", cfg.LatencyMs, 80},
		{"flag bool", cfg.MDNS, false},
		{"nested file key", cfg.Play.Address, "bus3"},
		{"nested env key", cfg.Play.Source, "tone.wav"},
		{"untouched default", cfg.BufferSizeMs, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadUnknownFlag(t *testing.T) {
	if _, err := Load([]string{"--bogus"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Name:             "proxy",
		Port:             8928,
		BufferSizeMs:     20,
		LatencyMs:        40,
		RequestTimeoutMs: 2000,
		LogLevel:         "info",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"buffer zero", func(c *Config) { c.BufferSizeMs = 0 }},
		{"latency negative", func(c *Config) { c.LatencyMs = -1 }},
		{"timeout zero", func(c *Config) { c.RequestTimeoutMs = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"tui without log file", func(c *Config) { c.TUI = true }},
		{"source without address", func(c *Config) { c.Play.Source = "a.mp3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	err := Config{LogLevel: "info"}.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"name", "port", "buffer_size_ms", "latency_ms", "request_timeout_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
