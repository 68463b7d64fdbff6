package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rdelicado/minitalk/session"
	"github.com/rdelicado/minitalk/transmitter"
)

// clientConfig is the transmitter tuning, loadable from TOML.
type clientConfig struct {
	Pace       time.Duration
	AckUnit    session.AckUnit
	AckTimeout time.Duration
	MaxRetries int
	LogLevel   string
}

func defaultClientConfig() clientConfig {
	def := transmitter.DefaultConfig()
	return clientConfig{
		Pace:       def.Pace,
		AckUnit:    def.AckUnit,
		AckTimeout: def.AckTimeout,
		MaxRetries: def.MaxRetries,
		LogLevel:   "info",
	}
}

// fileConfig mirrors the TOML schema. Durations are strings parsed with
// time.ParseDuration ("200us", "1.5s").
type fileConfig struct {
	Pace       string `toml:"pace"`
	AckUnit    string `toml:"ack_unit"`
	AckTimeout string `toml:"ack_timeout"`
	MaxRetries int    `toml:"max_retries"`
	LogLevel   string `toml:"log_level"`
}

func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("pace") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Pace))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse pace: %w", err)
		}
		cfg.Pace = d
	}

	if meta.IsDefined("ack_unit") {
		unit, err := session.ParseUnit(strings.TrimSpace(raw.AckUnit))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse ack_unit: %w", err)
		}
		cfg.AckUnit = unit
	}

	if meta.IsDefined("ack_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AckTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse ack_timeout: %w", err)
		}
		cfg.AckTimeout = d
	}

	if meta.IsDefined("max_retries") {
		if raw.MaxRetries <= 0 {
			return clientConfig{}, fmt.Errorf("max_retries must be positive, got %d", raw.MaxRetries)
		}
		cfg.MaxRetries = raw.MaxRetries
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
