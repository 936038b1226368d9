// Package commands contains the GridWeaver CLI subcommands.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/gridweaver/internal/cli/config"
	sharedcfg "github.com/leapstack-labs/gridweaver/internal/config"
	"github.com/leapstack-labs/gridweaver/internal/gateway"
	"github.com/leapstack-labs/gridweaver/internal/server"
	"github.com/leapstack-labs/gridweaver/internal/store"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/datasource"
	"github.com/leapstack-labs/gridweaver/pkg/hydrate"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CommandContext holds the dependencies shared by every command.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext reads the config and logger installed by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &CommandContext{
		Cfg:    config.GetConfig(ctx),
		Logger: config.GetLogger(ctx),
	}
}

// OpenStore opens the configured storage adapter. Pending migrations are
// applied when auto_migrate is set and the adapter has a schema.
func (c *CommandContext) OpenStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, store.Config{
		Type:   c.Cfg.Storage.Type,
		DSN:    c.Cfg.Storage.DSN,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if m, ok := s.(store.Migrator); ok && c.Cfg.Storage.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenGateway opens the store and wraps it in a gateway configured with the
// mutation secret and read guard.
func (c *CommandContext) OpenGateway(ctx context.Context) (*gateway.Gateway, error) {
	s, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := []gateway.Option{
		gateway.WithSecret(c.Cfg.Mutation.Secret),
		gateway.WithLogger(c.Logger),
	}
	if c.Cfg.ReadGuard.Type == sharedcfg.ReadGuardSession {
		cookies := server.NewCookieStore(c.Cfg.ReadGuard.SessionSecret)
		opts = append(opts, gateway.WithReadGuard(server.SessionReadGuard(cookies, c.Cfg.ReadGuard.SessionName)))
	}
	return gateway.New(s, opts...), nil
}

// SourceFactory binds fetch specs to HTTP sources using the configured base
// URL and timeout.
func (c *CommandContext) SourceFactory() hydrate.SourceFactory {
	client := &http.Client{Timeout: c.Cfg.DataSource.Timeout}
	base := c.Cfg.DataSource.ParsedBaseURL()
	return func(spec core.FetchSpec) core.PagedDataSource {
		return datasource.NewHTTPSource(spec,
			datasource.WithClient(client),
			datasource.WithBaseURL(base),
			datasource.WithLogger(c.Logger),
		)
	}
}

// readDocument reads a JSON or YAML document from path and returns it as
// JSON. A path of "-" reads from stdin.
func readDocument(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if strings.EqualFold(filepath.Ext(path), ".json") || bytes.HasPrefix(trimmed, []byte("{")) {
		return trimmed, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to JSON: %w", path, err)
	}
	return out, nil
}

// readDefinition reads and validates a definition document.
func readDefinition(path string, stdin io.Reader) (*core.SerializedTableDefinition, error) {
	data, err := readDocument(path, stdin)
	if err != nil {
		return nil, err
	}
	return core.ParseDefinition(data)
}

// parseParams parses repeated key=value flags.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected key=value)", pair)
		}
		params[k] = v
	}
	return params, nil
}
