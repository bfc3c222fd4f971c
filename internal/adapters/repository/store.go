// Package repository implements the key-value persistence port on top of
// memory, SQLite, Redis and Postgres.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/workpulse/internal/domain/model"
)

// Store is a JSON key-value store. Get returns ErrNotFound for missing keys;
// every I/O failure wraps model.ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func encode(key string, value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return b, nil
}

func decode(key string, data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, model.ErrStoreUnavailable, err)
}
