package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore implements Store in process memory.
// Safe for concurrent use. Expired entries are dropped lazily.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// SetClock overrides the time source used for TTL checks.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns a copy of the value at key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entry, ok := m.data[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(now) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Put stores a copy of value at key.
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = entry
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// List returns live keys in lexical order. The cursor is the last key of the
// previous page, so keys written behind the cursor during a scan are skipped.
func (m *MemoryStore) List(ctx context.Context, cursor string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	m.mu.RLock()
	now := m.now()
	keys := make([]string, 0, len(m.data))
	for key, entry := range m.data {
		if entry.expired(now) {
			continue
		}
		if cursor != "" && key <= cursor {
			continue
		}
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	if len(keys) <= limit {
		return Page{Keys: keys, Complete: true}, nil
	}

	keys = keys[:limit]
	return Page{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
