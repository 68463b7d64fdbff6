package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rdelicado/minitalk/session"
)

// writeConfig drops TOML content into a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadClientConfigFull(t *testing.T) {
	path := writeConfig(t, `
pace = "500us"
ack_unit = "byte"
ack_timeout = "250ms"
max_retries = 5
log_level = "debug"
`)

	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pace != 500*time.Microsecond {
		t.Errorf("expected pace 500us, got %v", cfg.Pace)
	}
	if cfg.AckUnit != session.UnitByte {
		t.Errorf("expected byte unit, got %v", cfg.AckUnit)
	}
	if cfg.AckTimeout != 250*time.Millisecond {
		t.Errorf("expected timeout 250ms, got %v", cfg.AckTimeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.MaxRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %q", cfg.LogLevel)
	}
}

func TestLoadClientConfigDefaultsPreserved(t *testing.T) {
	// keys absent from the file must keep their defaults
	path := writeConfig(t, `ack_unit = "bit"`)

	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := defaultClientConfig()
	if cfg.AckUnit != session.UnitBit {
		t.Errorf("expected bit unit, got %v", cfg.AckUnit)
	}
	if cfg.Pace != def.Pace {
		t.Errorf("expected default pace %v, got %v", def.Pace, cfg.Pace)
	}
	if cfg.AckTimeout != def.AckTimeout {
		t.Errorf("expected default timeout %v, got %v", def.AckTimeout, cfg.AckTimeout)
	}
	if cfg.MaxRetries != def.MaxRetries {
		t.Errorf("expected default retries %d, got %d", def.MaxRetries, cfg.MaxRetries)
	}
}

func TestLoadClientConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `pace = "not-a-duration"`)

	if _, err := loadClientConfig(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoadClientConfigBadUnit(t *testing.T) {
	path := writeConfig(t, `ack_unit = "packet"`)

	if _, err := loadClientConfig(path); err == nil {
		t.Error("expected error for unknown ack unit")
	}
}

func TestLoadClientConfigNegativeRetries(t *testing.T) {
	path := writeConfig(t, `max_retries = -1`)

	if _, err := loadClientConfig(path); err == nil {
		t.Error("expected error for negative retry count")
	}
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	if _, err := loadClientConfig("/nonexistent/client.toml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
