package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/gridweaver/internal/cli/config"
	sharedcfg "github.com/leapstack-labs/gridweaver/internal/config"
	"github.com/leapstack-labs/gridweaver/internal/server"
	"github.com/leapstack-labs/gridweaver/internal/store"
	"github.com/leapstack-labs/gridweaver/internal/testutil"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersYAML = `http:
  url: /users
  params:
    tenant: acme
columnDefs:
  - field: name
    headerName: Name
    formatter:
      - "$cellValue | toUpper"
  - field: email
  - field: company.name
    headerName: Company
defaultSort:
  colId: name
  sort: asc
`

func testConfig() *sharedcfg.Config {
	return &sharedcfg.Config{
		Storage:    sharedcfg.StorageConfig{Type: "memory"},
		Mutation:   sharedcfg.MutationConfig{Header: server.DefaultSecretHeader},
		DataSource: sharedcfg.DataSourceConfig{Timeout: 5 * time.Second},
		Log:        sharedcfg.LogConfig{Level: "debug", Format: "text"},
	}
}

func testContext(t *testing.T, cfg *sharedcfg.Config) context.Context {
	t.Helper()
	ctx := context.WithValue(context.Background(), config.ConfigKey(), cfg)
	return context.WithValue(ctx, config.LoggerKey(), testutil.NewTestLogger(t))
}

// execute runs cmd with args and returns what it wrote.
func execute(t *testing.T, cmd *cobra.Command, cfg *sharedcfg.Config, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testContext(t, cfg))
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		stdin   string
		want    string
		wantErr string
	}{
		{
			name: "yaml file",
			path: writeFile(t, dir, "a.yaml", "startRow: 0\nendRow: 10\n"),
			want: `{"endRow":10,"startRow":0}`,
		},
		{
			name: "json file",
			path: writeFile(t, dir, "a.json", "  {\"startRow\": 5}\n"),
			want: `{"startRow": 5}`,
		},
		{
			name: "json without extension",
			path: writeFile(t, dir, "request", "{\"endRow\":\t3}"),
			want: "{\"endRow\":\t3}",
		},
		{
			name:  "stdin",
			path:  "-",
			stdin: "endRow: 7",
			want:  `{"endRow":7}`,
		},
		{
			name:    "missing file",
			path:    filepath.Join(dir, "nope.yaml"),
			wantErr: "failed to read",
		},
		{
			name:    "bad yaml",
			path:    writeFile(t, dir, "bad.yaml", "a: [1, 2"),
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readDocument(tt.path, strings.NewReader(tt.stdin))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestReadDefinition(t *testing.T) {
	dir := t.TempDir()

	def, err := readDefinition(writeFile(t, dir, "users.yaml", usersYAML), nil)
	require.NoError(t, err)
	assert.Equal(t, "/users", def.HTTP.URL)
	assert.Equal(t, "acme", def.HTTP.Params["tenant"])
	require.Len(t, def.ColumnDefs, 3)
	assert.Equal(t, []string{"$cellValue | toUpper"}, def.ColumnDefs[0].Formatter)

	_, err = readDefinition(writeFile(t, dir, "bad.yaml", "columnDefs: []\n"), nil)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"tenant=acme", "q=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tenant": "acme", "q": "a=b", "empty": ""}, got)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestCommandContext_OpenStoreMigrates(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = sharedcfg.StorageConfig{
		Type:        "sqlite",
		DSN:         filepath.Join(t.TempDir(), "grid.db"),
		AutoMigrate: true,
	}
	c := &CommandContext{Cfg: cfg, Logger: testutil.NewTestLogger(t)}
	ctx := context.Background()

	s, err := c.OpenStore(ctx)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	m, ok := s.(store.Migrator)
	require.True(t, ok)
	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Positive(t, version)
}

func TestCommandContext_OpenStoreUnknownType(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "redis"
	c := &CommandContext{Cfg: cfg, Logger: testutil.NewTestLogger(t)}

	_, err := c.OpenStore(context.Background())
	var unknown *store.UnknownTypeError
	assert.ErrorAs(t, err, &unknown)
}

func TestCommandContext_OpenGateway(t *testing.T) {
	ctx := context.Background()
	raw := []byte(`{"http":{"url":"/users"},"columnDefs":[{"field":"name"}]}`)

	t.Run("no secret disables mutation", func(t *testing.T) {
		c := &CommandContext{Cfg: testConfig(), Logger: testutil.NewTestLogger(t)}
		gw, err := c.OpenGateway(ctx)
		require.NoError(t, err)
		defer func() { _ = gw.Close() }()

		assert.False(t, gw.MutationEnabled())
		_, err = gw.Create(ctx, "", raw)
		assert.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("session guard applies to reads", func(t *testing.T) {
		cfg := testConfig()
		cfg.Mutation.Secret = "s3cret"
		cfg.ReadGuard = sharedcfg.ReadGuardConfig{Type: sharedcfg.ReadGuardSession, SessionSecret: "cookie-key"}
		c := &CommandContext{Cfg: cfg, Logger: testutil.NewTestLogger(t)}

		gw, err := c.OpenGateway(ctx)
		require.NoError(t, err)
		defer func() { _ = gw.Close() }()

		id, err := gw.Create(ctx, "s3cret", raw)
		require.NoError(t, err)

		// Outside an HTTP request there is no session to consult.
		_, err = gw.Read(ctx, id)
		assert.ErrorIs(t, err, core.ErrForbidden)
	})
}
