// Package config provides shared configuration types for GridWeaver.
// This package is decoupled from CLI concerns; the CLI loader fills these
// types from defaults, a YAML file, the environment and flags.
package config

import "time"

// Config holds all GridWeaver configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Mutation   MutationConfig   `koanf:"mutation"`
	ReadGuard  ReadGuardConfig  `koanf:"read_guard"`
	DataSource DataSourceConfig `koanf:"datasource"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// StorageConfig selects the definition storage adapter.
type StorageConfig struct {
	Type        string `koanf:"type"` // memory, sqlite, postgres
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// MutationConfig configures the mutation guard. An empty secret disables
// every write.
type MutationConfig struct {
	Secret string `koanf:"secret"`
	Header string `koanf:"header"`
}

// Read guard types.
const (
	ReadGuardNone    = "none"
	ReadGuardSession = "session"
)

// ReadGuardConfig configures the optional read guard.
type ReadGuardConfig struct {
	Type          string `koanf:"type"`
	SessionSecret string `koanf:"session_secret"`
	SessionName   string `koanf:"session_name"`
}

// DataSourceConfig configures the HTTP paged-data source used by the CLI.
type DataSourceConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}
