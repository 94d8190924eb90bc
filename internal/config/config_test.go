package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Cache.TTLSeconds != 900 || !cfg.FallbackEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server":{"port":"9090"},"cache":{"ttl_sec":60},"fallback_enabled":false}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ALPHA_VANTAGE_KEY", "  secret  ")
	t.Setenv("CACHE_TTL_SEC", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("file value not applied: %+v", cfg.Server)
	}
	if cfg.Cache.TTLSeconds != 120 {
		t.Fatalf("env should override file, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.AlphaVantage.APIKey != "secret" {
		t.Fatalf("api key should be trimmed, got %q", cfg.AlphaVantage.APIKey)
	}
	if cfg.FallbackEnabled {
		t.Fatal("fallback_enabled=false in file should stick")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
