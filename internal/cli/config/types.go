// Package config provides configuration management for the GridWeaver CLI.
//
// This package loads the shared configuration types from internal/config
// and re-exports them here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/gridweaver/internal/config"
)

// Config is an alias for the shared configuration.
// This allows CLI code to use config.Config without importing internal/config.
type Config = sharedcfg.Config

// LogConfig is an alias for the shared logging configuration.
type LogConfig = sharedcfg.LogConfig

// EnvPrefix prefixes every environment variable read by the loader.
// Nesting levels are separated by a double underscore:
// GRIDWEAVER_STORAGE__DSN sets storage.dsn.
const EnvPrefix = "GRIDWEAVER_"

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"addr":       "server.addr",
	"storage":    "storage.type",
	"dsn":        "storage.dsn",
	"secret":     "mutation.secret",
	"base-url":   "datasource.base_url",
	"log-level":  "log.level",
	"log-format": "log.format",
}
