package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/workpulse/pkg/logger"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const memoryPath = ":memory:"

// SQLiteStore keeps values in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	table  string
	logger logger.Logger
}

// OpenSQLite opens (and creates if needed) the database at path with WAL
// journaling and a busy timeout, then ensures the table exists.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if path == memoryPath {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", p, err)
		}
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%%s','now'))
)`, o.table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	o.logger.Info(ctx, "sqlite store opened", logger.String("path", path))
	return &SQLiteStore{db: db, table: o.table, logger: o.logger}, nil
}

// Get decodes the value stored at key into dest.
func (s *SQLiteStore) Get(ctx context.Context, key string, dest any) error {
	var raw string
	q := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("get", key, err)
	}
	return decode(key, []byte(raw), dest)
}

// Set upserts value at key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value any) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, strftime('%%s','now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, string(b)); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Delete removes keys in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("delete", "", err)
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k); err != nil {
			_ = tx.Rollback()
			return unavailable("delete", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete", "", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
