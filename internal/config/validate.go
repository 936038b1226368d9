package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/leapstack-labs/gridweaver/internal/store"
)

// Validate checks the configuration. Storage types are checked against the
// store registry.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Type == "" {
		errs = append(errs, fmt.Errorf("storage.type is required"))
	} else if _, ok := store.Get(c.Storage.Type); !ok {
		errs = append(errs, &store.UnknownTypeError{Type: c.Storage.Type, Available: store.Types()})
	}
	if c.Storage.Type == "postgres" && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn is required for postgres"))
	}

	if hasPlaceholder(c.Mutation.Secret) {
		errs = append(errs, fmt.Errorf("mutation.secret contains an unexpanded ${...} placeholder"))
	}
	if hasPlaceholder(c.ReadGuard.SessionSecret) {
		errs = append(errs, fmt.Errorf("read_guard.session_secret contains an unexpanded ${...} placeholder"))
	}

	switch c.ReadGuard.Type {
	case "", ReadGuardNone:
	case ReadGuardSession:
		if c.ReadGuard.SessionSecret == "" {
			errs = append(errs, fmt.Errorf("read_guard.session_secret is required for session read guard"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown read_guard.type %q (available: %s, %s)", c.ReadGuard.Type, ReadGuardNone, ReadGuardSession))
	}

	if c.DataSource.BaseURL != "" {
		u, err := url.Parse(c.DataSource.BaseURL)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("datasource.base_url must be an absolute URL: %q", c.DataSource.BaseURL))
		}
	}
	if c.DataSource.Timeout < 0 {
		errs = append(errs, fmt.Errorf("datasource.timeout must not be negative"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q (available: text, json)", c.Log.Format))
	}

	return errors.Join(errs...)
}

func hasPlaceholder(s string) bool {
	i := strings.Index(s, "${")
	return i >= 0 && strings.Contains(s[i:], "}")
}

// ParsedBaseURL returns the parsed data source base URL, or nil when unset.
func (c *DataSourceConfig) ParsedBaseURL() *url.URL {
	if c.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil
	}
	return u
}
