// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package config loads the daemon's TOML configuration file (§4.10 C12
// daemon wiring).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the daemon-wide configuration loaded from a TOML file.
type Config struct {
	LogLevel          string `toml:"log_level"`
	MetricsListenAddr string `toml:"metrics_listen_addr"`
	BusAddress        string `toml:"bus_address"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:          "info",
		MetricsListenAddr: ":9102",
		BusAddress:        "",
	}
}

// Load reads and parses path, overlaying onto Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
