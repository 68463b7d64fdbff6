package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rdelicado/minitalk/session"
	"github.com/rdelicado/minitalk/transport"
)

// serverConfig is everything the server needs to run.
type serverConfig struct {
	AckUnit  session.AckUnit       // must match what clients are configured with
	AckTo    transport.PeerAddress // where acknowledgments go, NoPeer disables them
	Output   string                // message log path, empty logs to console only
	LogLevel string                // zerolog level name
}

// defaultServerConfig is what you get with no config file and no flags:
// base variant, console output.
func defaultServerConfig() serverConfig {
	return serverConfig{
		AckUnit:  session.UnitNone,
		AckTo:    transport.NoPeer,
		Output:   "",
		LogLevel: "info",
	}
}

// fileConfig mirrors the TOML schema. All fields are optional — only keys
// actually present in the file override the defaults.
type fileConfig struct {
	AckUnit  string `toml:"ack_unit"`
	AckTo    int    `toml:"ack_to"`
	Output   string `toml:"output"`
	LogLevel string `toml:"log_level"`
}

func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("ack_unit") {
		unit, err := session.ParseUnit(strings.TrimSpace(raw.AckUnit))
		if err != nil {
			return serverConfig{}, fmt.Errorf("parse ack_unit: %w", err)
		}
		cfg.AckUnit = unit
	}

	if meta.IsDefined("ack_to") {
		if raw.AckTo <= 0 {
			return serverConfig{}, fmt.Errorf("ack_to must be a positive pid, got %d", raw.AckTo)
		}
		cfg.AckTo = transport.PeerAddress(raw.AckTo)
	}

	if meta.IsDefined("output") {
		cfg.Output = strings.TrimSpace(raw.Output)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
