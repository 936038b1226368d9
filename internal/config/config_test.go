package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Addr: DefaultAddr, ReadHeaderTimeout: 10 * time.Second},
		Storage:    StorageConfig{Type: "memory"},
		Mutation:   MutationConfig{Header: DefaultSecretHeader},
		ReadGuard:  ReadGuardConfig{Type: ReadGuardNone},
		DataSource: DataSourceConfig{Timeout: 30 * time.Second},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "sqlite", mutate: func(c *Config) { c.Storage.Type = "sqlite" }},
		{
			name:      "empty storage type",
			mutate:    func(c *Config) { c.Storage.Type = "" },
			errSubstr: "storage.type is required",
		},
		{
			name:      "unknown storage type",
			mutate:    func(c *Config) { c.Storage.Type = "mysql" },
			errSubstr: `unknown storage type "mysql"`,
		},
		{
			name:      "postgres without dsn",
			mutate:    func(c *Config) { c.Storage.Type = "postgres" },
			errSubstr: "storage.dsn is required",
		},
		{
			name:      "session guard without secret",
			mutate:    func(c *Config) { c.ReadGuard.Type = ReadGuardSession },
			errSubstr: "session_secret is required",
		},
		{
			name: "session guard with secret",
			mutate: func(c *Config) {
				c.ReadGuard = ReadGuardConfig{Type: ReadGuardSession, SessionSecret: "k"}
			},
		},
		{
			name:      "unexpanded mutation secret",
			mutate:    func(c *Config) { c.Mutation.Secret = "${GW_SECRET}" },
			errSubstr: "mutation.secret contains an unexpanded",
		},
		{
			name: "unexpanded session secret",
			mutate: func(c *Config) {
				c.ReadGuard = ReadGuardConfig{Type: ReadGuardSession, SessionSecret: "key-${GW_COOKIE}"}
			},
			errSubstr: "read_guard.session_secret contains an unexpanded",
		},
		{
			name:   "dollar without placeholder",
			mutate: func(c *Config) { c.Mutation.Secret = "pa$$word{1}" },
		},
		{
			name:      "unknown read guard",
			mutate:    func(c *Config) { c.ReadGuard.Type = "oauth" },
			errSubstr: `unknown read_guard.type "oauth"`,
		},
		{
			name:      "relative base url",
			mutate:    func(c *Config) { c.DataSource.BaseURL = "/api" },
			errSubstr: "must be an absolute URL",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Log.Level = "loud" },
			errSubstr: `unknown log.level "loud"`,
		},
		{
			name:      "bad log format",
			mutate:    func(c *Config) { c.Log.Format = "xml" },
			errSubstr: `unknown log.format "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_ValidateReportsAll(t *testing.T) {
	c := validConfig()
	c.Storage.Type = ""
	c.Log.Format = "xml"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.type")
	assert.Contains(t, err.Error(), "log.format")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	logger, err = NewLogger(&buf, LogConfig{})
	require.NoError(t, err)
	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	_, err = NewLogger(&buf, LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, DefaultStorageType, d["storage.type"])
	assert.Equal(t, DefaultSecretHeader, d["mutation.header"])
	assert.Equal(t, ReadGuardNone, d["read_guard.type"])
	assert.Equal(t, true, d["storage.auto_migrate"])
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFile(dir))

	alt := filepath.Join(dir, ConfigFileNameAlt)
	require.NoError(t, os.WriteFile(alt, []byte("log:\n  level: debug\n"), 0o600))
	assert.Equal(t, alt, FindConfigFile(dir))

	primary := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(primary, []byte("log:\n  level: debug\n"), 0o600))
	assert.Equal(t, primary, FindConfigFile(dir), "yaml wins over yml")
}

func TestParsedBaseURL(t *testing.T) {
	c := DataSourceConfig{}
	assert.Nil(t, c.ParsedBaseURL())

	c.BaseURL = "https://api.example.com/v1/"
	u := c.ParsedBaseURL()
	require.NotNil(t, u)
	assert.Equal(t, "api.example.com", u.Host)
}
