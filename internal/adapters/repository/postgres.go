package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/pkg/logger"
)

// PostgresStore keeps values in a JSONB column.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	logger logger.Logger
}

// OpenPostgres connects with dsn, pings, and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	o := buildOptions(opts)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w: %w", model.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w: %w", model.ErrStoreUnavailable, err)
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pgx.Identifier{o.table}.Sanitize())
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	o.logger.Info(ctx, "postgres store connected", logger.String("host", cfg.ConnConfig.Host))
	return &PostgresStore{pool: pool, table: pgx.Identifier{o.table}.Sanitize(), logger: o.logger}, nil
}

// Get decodes the value stored at key into dest.
func (s *PostgresStore) Get(ctx context.Context, key string, dest any) error {
	var raw []byte
	q := fmt.Sprintf("SELECT value::text FROM %s WHERE key = $1", s.table)
	err := s.pool.QueryRow(ctx, q, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("get", key, err)
	}
	return decode(key, raw, dest)
}

// Set upserts value at key.
func (s *PostgresStore) Set(ctx context.Context, key string, value any) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, s.table)
	if _, err := s.pool.Exec(ctx, q, key, string(b)); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Delete removes keys.
func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE key = ANY($1)", s.table)
	if _, err := s.pool.Exec(ctx, q, keys); err != nil {
		return unavailable("delete", "", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
