package commands

import (
	"fmt"
	"path"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/gridweaver/internal/store"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	Status bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage schema migrations",
		Long: `Apply pending schema migrations to the configured storage.

The memory adapter has no schema and is left untouched.`,
		Example: `  # Migrate the default SQLite database
  gridweaver migrate

  # Show applied and pending migrations
  gridweaver migrate --status --storage postgres --dsn postgres://localhost/grid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Status, "status", false, "Show migration status instead of migrating")

	return cmd
}

// migrationLister is implemented by stores with embedded migrations.
type migrationLister interface {
	Migrations() ([]string, error)
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	ctx := cmd.Context()
	c := NewCommandContext(cmd)
	out := cmd.OutOrStdout()

	s, err := store.Open(ctx, store.Config{Type: c.Cfg.Storage.Type, DSN: c.Cfg.Storage.DSN, Logger: c.Logger})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = s.Close() }()

	m, ok := s.(store.Migrator)
	if !ok {
		_, err := fmt.Fprintf(out, "Storage %q has no schema\n", c.Cfg.Storage.Type)
		return err
	}

	if !opts.Status {
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}

	version, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if !opts.Status {
		_, err := fmt.Fprintf(out, "Schema at version %d\n", version)
		return err
	}

	lister, ok := s.(migrationLister)
	if !ok {
		_, err := fmt.Fprintf(out, "Schema at version %d\n", version)
		return err
	}
	files, err := lister.Migrations()
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Version", "Migration", "Status"})
	for _, f := range files {
		name := path.Base(f)
		n, err := goose.NumericComponent(name)
		if err != nil {
			return fmt.Errorf("invalid migration name %s: %w", name, err)
		}
		status := "pending"
		if n <= version {
			status = "applied"
		}
		t.AppendRow(table.Row{n, name, status})
	}
	t.Render()
	return nil
}
