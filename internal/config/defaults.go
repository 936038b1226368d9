package config

// Default configuration values.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = "10s"
	DefaultStorageType       = "sqlite"
	DefaultStorageDSN        = "gridweaver.db"
	DefaultSecretHeader      = "X-GridWeaver-Secret"
	DefaultSessionName       = "gridweaver"
	DefaultDataSourceTimeout = "30s"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Defaults returns the default configuration as flat koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":                DefaultAddr,
		"server.read_header_timeout": DefaultReadHeaderTimeout,
		"storage.type":               DefaultStorageType,
		"storage.dsn":                DefaultStorageDSN,
		"storage.auto_migrate":       true,
		"mutation.secret":            "",
		"mutation.header":            DefaultSecretHeader,
		"read_guard.type":            ReadGuardNone,
		"read_guard.session_secret":  "",
		"read_guard.session_name":    DefaultSessionName,
		"datasource.base_url":        "",
		"datasource.timeout":         DefaultDataSourceTimeout,
		"log.level":                  DefaultLogLevel,
		"log.format":                 DefaultLogFormat,
	}
}
