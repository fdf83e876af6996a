package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore implements Store using an in-memory map. With a TTL, entries
// expire the same way Redis keys do: every write restarts the clock.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	ttl    time.Duration

	// Now is the clock used for expiry.
	Now func() time.Time
}

// NewMemoryStore creates a new in-memory store whose entries never expire.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(0)
}

// NewMemoryStoreWithTTL creates an in-memory store whose entries expire ttl
// after their last write. A zero ttl disables expiry.
func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		ttl:    ttl,
		Now:    time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if e.expired(s.Now()) {
		s.mu.Lock()
		if cur, ok := s.values[key]; ok && cur.expired(s.Now()) {
			delete(s.values, key)
		}
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		return ErrInvalidConfig
	}
	e := memoryEntry{value: value}
	if s.ttl > 0 {
		e.expiresAt = s.Now().Add(s.ttl)
	}
	s.values[key] = e
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Prune removes expired entries and returns how many were removed.
func (s *MemoryStore) Prune() int {
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.values {
		if e.expired(now) {
			delete(s.values, key)
			n++
		}
	}
	return n
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = nil
	return nil
}

// Len returns the number of stored keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
