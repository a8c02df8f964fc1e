package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is an in-process cache backend for setups that do not want
// a cache database, and for tests. LRU bounded, lazy expiry.
type MemoryStore struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, _ := lru.New[string, *Entry](maxEntries)
	return &MemoryStore{entries: entries}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if entry.Expired(time.Now()) {
		s.entries.Remove(key)
		return nil, nil
	}

	entry.HitCount++
	clone := *entry
	return &clone, nil
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *entry
	s.entries.Add(entry.QueryHash, &clone)
	return nil
}

func (s *MemoryStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range s.entries.Keys() {
		if entry, ok := s.entries.Peek(key); ok && entry.Expired(now) {
			s.entries.Remove(key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Purge()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

func (s *MemoryStore) Close() error { return nil }
