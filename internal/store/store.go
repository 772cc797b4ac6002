// Package store provides the key-value record store behind short links.
//
// Adapters share one contract: values are opaque bytes, entries may carry a
// TTL, and keys are enumerated page by page with an opaque cursor. No adapter
// offers multi-key transactions.
package store

import (
	"context"
	"errors"
	"time"
)

// Common store errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrInvalidCursor = errors.New("invalid list cursor")
)

// DefaultPageSize is used by List when limit is not positive.
const DefaultPageSize = 100

// Page is one slice of a key enumeration.
type Page struct {
	Keys []string
	// Cursor resumes the enumeration after this page. Empty on the last page.
	Cursor string
	// Complete is true when no keys remain after this page.
	Complete bool
}

// Store is the record persistence boundary.
type Store interface {
	// Get returns the value at key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes value at key. A ttl <= 0 stores the entry without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to limit keys starting after cursor ("" for the first page).
	List(ctx context.Context, cursor string, limit int) (Page, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Exists reports whether key is present in s.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
