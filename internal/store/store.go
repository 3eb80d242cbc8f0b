// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists manuscripts and projects in a relational database.
// SQLite is the local default; PostgreSQL serves shared deployments. Every
// call acquires a connection from the pool and releases it on return; no
// transaction spans more than one operation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// ErrNotFound is returned when a manuscript or project id has no record.
var ErrNotFound = errors.New("not found")

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	driver string
	schema []string

	// dollar selects $n placeholders instead of ?.
	dollar bool
}

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS manuscripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			language TEXT NOT NULL,
			model TEXT NOT NULL,
			documents_folder TEXT NOT NULL DEFAULT '',
			collection TEXT NOT NULL DEFAULT '',
			manuscript_id INTEGER,
			created TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_last_updated ON projects(last_updated)`,
	},
}

var postgresDialect = dialect{
	driver: "pgx",
	dollar: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS manuscripts (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			created TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			language TEXT NOT NULL,
			model TEXT NOT NULL,
			documents_folder TEXT NOT NULL DEFAULT '',
			collection TEXT NOT NULL DEFAULT '',
			manuscript_id BIGINT,
			created TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_last_updated ON projects(last_updated)`,
	},
}

// rebind rewrites ? placeholders to $1, $2, ... for dialects that need it.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.dollar {
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

// Store manages the manuscript and project tables.
type Store struct {
	db      *sql.DB
	dialect dialect

	// now is the clock used for timestamps. Tests replace it.
	now func() time.Time
}

// Open connects to the database selected by cfg and creates the schema if it
// does not exist. For sqlite the DSN is a file path whose parent directory is
// created on demand.
func Open(ctx context.Context, cfg types.StoreConfig) (*Store, error) {
	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case types.DriverSQLite, "":
		d = sqliteDialect
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	case types.DriverPostgres:
		d = postgresDialect
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}
