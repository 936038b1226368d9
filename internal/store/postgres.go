package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	Register("postgres", func(ctx context.Context, cfg Config) (Store, error) {
		return OpenPostgres(ctx, cfg.DSN, cfg.Logger)
	})
}

// OpenPostgres connects to PostgreSQL through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires a dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return NewPostgresStore(db, logger), nil
}

// NewPostgresStore wraps an open PostgreSQL connection pool.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *SQLStore {
	return newSQLStore(db, postgresDialect, logger)
}
