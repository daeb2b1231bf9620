package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/gamecache/gamecache/pkg/types"
)

// L1Store is the bounded in-process tier: an access-order LRU keyed map with
// lazy TTL expiry. All mutations are serialized behind a single mutex so the
// size and recency invariants are never observable in a torn state.
type L1Store struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	evictList  *list.List
	logger     *slog.Logger

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewL1Store creates an L1 store holding at most maxEntries entries.
func NewL1Store(maxEntries int, logger *slog.Logger) *L1Store {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &L1Store{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the value for key if present and unexpired, refreshing its
// recency. An expired entry is removed on the access that discovers it.
func (s *L1Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return nil, false
	}

	entry := element.Value.(*types.Entry)
	now := s.now()
	if entry.Expired(now) {
		s.removeElement(element)
		return nil, false
	}

	entry.Touch(now)
	s.evictList.MoveToFront(element)
	return entry.Value, true
}

// Set inserts or replaces the value for key. An insertion at capacity evicts
// exactly one entry, the least recently used, before the new one goes in.
func (s *L1Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if element, exists := s.items[key]; exists {
		entry := element.Value.(*types.Entry)
		entry.Value = value
		entry.InsertedAt = now
		entry.LastAccessedAt = now
		entry.TTL = ttl
		s.evictList.MoveToFront(element)
		return
	}

	if len(s.items) >= s.maxEntries {
		s.evictOldest()
	}

	entry := &types.Entry{
		Key:            key,
		Value:          value,
		InsertedAt:     now,
		LastAccessedAt: now,
		TTL:            ttl,
	}
	s.items[key] = s.evictList.PushFront(entry)

	// Must never fire: one eviction per overflowing insert keeps the bound.
	if len(s.items) > s.maxEntries {
		s.logger.Error("L1 capacity invariant violated",
			"size", len(s.items),
			"max_entries", s.maxEntries)
	}
}

// Delete removes key, reporting whether it was present.
func (s *L1Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.items[key]
	if !exists {
		return false
	}
	s.removeElement(element)
	return true
}

// Len returns the current number of entries.
func (s *L1Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MaxEntries returns the configured capacity.
func (s *L1Store) MaxEntries() int {
	return s.maxEntries
}

// Clear removes all entries.
func (s *L1Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.evictList.Init()
}

// Keys returns a snapshot of all keys, most recently used first.
func (s *L1Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for element := s.evictList.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*types.Entry).Key)
	}
	return keys
}

// DeleteExpired checks the given keys and removes those whose TTL has
// elapsed, returning the number removed. The sweeper calls this in batches so
// each critical section stays short.
func (s *L1Store) DeleteExpired(keys []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range keys {
		element, exists := s.items[key]
		if !exists {
			continue
		}
		if element.Value.(*types.Entry).Expired(now) {
			s.removeElement(element)
			removed++
		}
	}
	return removed
}

// evictOldest removes the back of the list: the entry with the oldest
// lastAccessedAt, insertion order breaking ties.
func (s *L1Store) evictOldest() {
	element := s.evictList.Back()
	if element == nil {
		return
	}
	s.removeElement(element)
}

func (s *L1Store) removeElement(element *list.Element) {
	entry := element.Value.(*types.Entry)
	s.evictList.Remove(element)
	delete(s.items, entry.Key)
}
