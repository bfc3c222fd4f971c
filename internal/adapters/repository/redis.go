package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each value as a JSON string under a prefixed key.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
	logger logger.Logger
}

// NewRedisStore wraps an existing client. Close does not close the client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{client: client, prefix: o.keyPrefix, logger: o.logger}
}

// OpenRedis dials addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w: %w", addr, model.ErrStoreUnavailable, err)
	}
	s := NewRedisStore(client, opts...)
	s.owned = true
	s.logger.Info(ctx, "redis store connected", logger.String("addr", addr), logger.Int("db", db))
	return s, nil
}

// Client exposes the underlying client for pub/sub wiring.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get decodes the value stored at key into dest.
func (s *RedisStore) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("get", key, err)
	}
	return decode(key, data, dest)
}

// Set stores value at key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), b, 0).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return unavailable("delete", "", err)
	}
	return nil
}

// Close closes the client when the store dialled it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
