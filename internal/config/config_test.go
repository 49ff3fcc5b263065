package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chute/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if strings.HasPrefix(cfg.Paths.LogDir, "~") {
		t.Fatalf("log dir not expanded: %s", cfg.Paths.LogDir)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[batch]
concurrency = 7

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.Concurrency != 7 {
		t.Fatalf("concurrency = %d, want 7", cfg.Batch.Concurrency)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Batch.ContinueOnError {
		t.Fatal("continue_on_error default lost")
	}
}

func TestLoadRejectsExplicitMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.Batch.Concurrency = 0 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"zero keep_runs", func(c *config.Config) { c.History.KeepRuns = 0 }},
		{"negative min free", func(c *config.Config) { c.Preflight.MinFreeMiB = -1 }},
	}
	for _, tc := range cases {
		cfg := config.Default()
		if err := cfg.Normalize(); err != nil {
			t.Fatalf("%s: Normalize: %v", tc.name, err)
		}
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}
