package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gamecache/gamecache/pkg/types"
)

// MemoryStore is an in-process types.RemoteStore. It backs local development
// and tests where no Redis is available; the service falls back to it when no
// remote address is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem

	// now is swappable for TTL tests.
	now func() time.Time
}

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

var _ types.RemoteStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get returns the stored bytes for key, or types.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	if !item.expireAt.IsZero() && s.now().After(item.expireAt) {
		delete(s.items, key)
		return nil, types.ErrNotFound
	}

	data := make([]byte, len(item.value))
	copy(data, item.value)
	return data, nil
}

// Set stores value under key with an optional expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expireAt = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

// Del removes key.
func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Exists reports whether key is present and unexpired.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FlushAll empties the store.
func (s *MemoryStore) FlushAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]memoryItem)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys, expired entries included until the
// next access removes them.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
