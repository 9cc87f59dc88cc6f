package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Analysis.Mode != "baseline" {
		t.Fatalf("default mode = %q, want baseline", cfg.Analysis.Mode)
	}
	if cfg.Analysis.MaxInputChars != 12000 {
		t.Fatalf("default maxInputChars = %d, want 12000", cfg.Analysis.MaxInputChars)
	}
	if cfg.Usage.DailyCeiling != 10000 {
		t.Fatalf("default daily ceiling = %f, want 10000", cfg.Usage.DailyCeiling)
	}
	if cfg.Archive.MaxObjectBytes != 200*1024 {
		t.Fatalf("default max object size = %d, want 204800", cfg.Archive.MaxObjectBytes)
	}
	if len(cfg.Feeds) == 0 {
		t.Fatalf("expected default feeds")
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("expected a bound timezone")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
analysis:
  mode: shadow
  canaryPercent: 25
usage:
  dailyCeiling: 500
feeds:
  - name: custom
    url: https://example.org/feed.xml
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Analysis.Mode != "shadow" {
		t.Fatalf("mode = %q, want shadow", cfg.Analysis.Mode)
	}
	if cfg.Analysis.CanaryPercent != 25 {
		t.Fatalf("canaryPercent = %f, want 25", cfg.Analysis.CanaryPercent)
	}
	if cfg.Usage.DailyCeiling != 500 {
		t.Fatalf("daily ceiling = %f, want 500", cfg.Usage.DailyCeiling)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "custom" {
		t.Fatalf("feeds not overridden: %+v", cfg.Feeds)
	}
	// Untouched sections keep their defaults.
	if cfg.Analysis.BaselineModel == "" {
		t.Fatalf("baseline model default lost in merge")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("analysis:\n  mode: trimodel\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(strategyModeEnv, "canary")
	t.Setenv(databaseDSNEnv, "postgres://env-host/threats")

	cfg := Load()

	if cfg.Analysis.Mode != "canary" {
		t.Fatalf("mode = %q, want env override canary", cfg.Analysis.Mode)
	}
	if cfg.Database.DSN != "postgres://env-host/threats" {
		t.Fatalf("dsn = %q, want env override", cfg.Database.DSN)
	}
}
