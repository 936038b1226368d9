package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

func init() {
	Register("sqlite", func(ctx context.Context, cfg Config) (Store, error) {
		return OpenSQLite(ctx, cfg.DSN, cfg.Logger)
	})
}

// OpenSQLite opens a SQLite-backed store. An empty dsn opens an in-memory
// database. Migrations are not applied; call Migrate.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	memory := dsn == MemoryDSN
	if !memory && !strings.Contains(dsn, "?") {
		// WAL and a busy timeout let the API server and CLI share a file.
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return newSQLStore(db, sqliteDialect, logger), nil
}
