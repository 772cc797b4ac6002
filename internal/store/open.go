package store

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a Store adapter.
type Options struct {
	Backend        string
	RedisURL       string
	RedisKeyPrefix string
	DatabaseURL    string
}

// Open builds the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisKeyPrefix)
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
