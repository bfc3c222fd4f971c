package repository

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Backends lists every supported backend name.
func Backends() []string {
	return []string{BackendMemory, BackendSQLite, BackendRedis, BackendPostgres}
}

// Settings selects and configures a backend.
type Settings struct {
	Backend       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

// Open builds the store named by s.Backend.
func Open(ctx context.Context, s Settings, opts ...Option) (Store, error) {
	switch strings.ToLower(s.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, s.SQLitePath, opts...)
	case BackendRedis:
		return OpenRedis(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB, opts...)
	case BackendPostgres:
		return OpenPostgres(ctx, s.PostgresDSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
}
