// ABOUTME: Tests for configuration loading, YAML parsing, and env overrides.
// ABOUTME: Uses temp files and t.Setenv so tests stay isolated.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWhenDefaultFileMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8581" {
		t.Errorf("Port = %q, want 8581", cfg.Server.Port)
	}
	if cfg.Client.Concurrency != 0 {
		t.Errorf("Concurrency = %d, want 0 (no cap)", cfg.Client.Concurrency)
	}
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9100"
  recommend_child_bridges: false
client:
  url: http://bridge.local:8581
  concurrency: 4
logging:
  level: debug
`)
	t.Setenv("HBX_USERNAME", "operator")
	t.Setenv("HBX_SERVICE_MODE", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Server.RecommendChildBridges {
		t.Error("RecommendChildBridges should be false from YAML")
	}
	if cfg.Server.ServiceMode {
		t.Error("ServiceMode should be false from env")
	}
	if cfg.Client.URL != "http://bridge.local:8581" || cfg.Client.Concurrency != 4 {
		t.Errorf("unexpected client config: %+v", cfg.Client)
	}
	if cfg.Client.Username != "operator" {
		t.Errorf("Username = %q, want operator", cfg.Client.Username)
	}
	if cfg.Client.Password != "admin" {
		t.Errorf("Password default lost: %q", cfg.Client.Password)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Server.JWTSecret = "short" }, "jwtsecret"},
		{"bad url", func(c *Config) { c.Client.URL = "not a url" }, "url"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "level"},
		{"negative concurrency", func(c *Config) { c.Client.Concurrency = -1 }, "concurrency"},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
