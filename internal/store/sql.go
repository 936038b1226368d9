package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// dialect captures what differs between SQL backends.
type dialect struct {
	name       string // goose dialect
	dir        string // migrations directory
	positional bool   // $1 placeholders instead of ?
	forUpdate  string // row lock clause for read-modify-write
}

var (
	sqliteDialect   = dialect{name: "sqlite3", dir: "migrations/sqlite"}
	postgresDialect = dialect{name: "postgres", dir: "migrations/postgres", positional: true, forUpdate: " FOR UPDATE"}
)

// bind rewrites ? placeholders for the dialect.
func (d dialect) bind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore stores documents as JSON text in the table_definitions table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Migrate runs all pending database migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, s.dialect.dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Debug("migrations applied", slog.String("dialect", s.dialect.name))
	return nil
}

// Version returns the current migration version.
func (s *SQLStore) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

func (s *SQLStore) configureGoose() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.dialect.name); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context, def *core.SerializedTableDefinition) (string, error) {
	doc, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode definition: %w", err)
	}

	id := uuid.New().String()
	now := s.now()
	_, err = s.db.ExecContext(ctx, s.dialect.bind(
		`INSERT INTO table_definitions (id, document, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		id, string(doc), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert definition: %w", err)
	}
	return id, nil
}

// Read implements Store.
func (s *SQLStore) Read(ctx context.Context, id string) (*core.SerializedTableDefinition, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, s.dialect.bind(
		`SELECT document FROM table_definitions WHERE id = ?`), id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return decodeDocument([]byte(doc))
}

// Update implements Store. The patch is merged inside a transaction.
func (s *SQLStore) Update(ctx context.Context, id string, patch core.DefinitionPatch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var doc string
	err = tx.QueryRowContext(ctx, s.dialect.bind(
		`SELECT document FROM table_definitions WHERE id = ?`+s.dialect.forUpdate), id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}

	updated, err := applyPatch([]byte(doc), patch)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, s.dialect.bind(
		`UPDATE table_definitions SET document = ?, updated_at = ? WHERE id = ?`),
		string(updated), s.now(), id,
	); err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.bind(`DELETE FROM table_definitions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrations lists the embedded migration files of the store's dialect.
func (s *SQLStore) Migrations() ([]string, error) {
	return fs.Glob(migrations, s.dialect.dir+"/*.sql")
}
