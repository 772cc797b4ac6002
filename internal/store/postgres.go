package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS kv_records (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NULL
	);
	CREATE INDEX IF NOT EXISTS kv_records_expires_at_idx
		ON kv_records (expires_at) WHERE expires_at IS NOT NULL;
`

// PostgresStore implements Store on a single PostgreSQL table.
// Expired rows are invisible to reads and removed by PurgeExpired.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the records table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create kv_records table: %w", err)
	}
	return nil
}

// Get returns the value at key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value FROM kv_records
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`

	var value []byte
	if err := s.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

// Put upserts value at key.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO kv_records (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}

	if _, err := s.pool.Exec(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns live keys ordered by key using keyset pagination.
func (s *PostgresStore) List(ctx context.Context, cursor string, limit int) (Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := `
		SELECT key FROM kv_records
		WHERE key > $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key
		LIMIT $2
	`

	// Fetch one extra row to detect whether another page exists
	rows, err := s.pool.Query(ctx, query, cursor, limit+1)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list records: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Page{}, fmt.Errorf("failed to scan record keys: %w", err)
	}

	if len(keys) <= limit {
		return Page{Keys: keys, Complete: true}, nil
	}

	keys = keys[:limit]
	return Page{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}

// PurgeExpired deletes rows whose TTL has elapsed and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_records WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
