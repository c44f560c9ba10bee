// Package infra provides shared infrastructure components used across
// the pipeline: run-scoped stores, logging and metrics.
package infra

import (
	"sort"
	"sync"
	"time"
)

// --- Run-scoped store ---

type storeEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a thread-safe keyed store with an optional TTL. It holds the
// artifacts of one process (for example trained model sets keyed by run
// id) and is passed explicitly to whoever needs it.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]storeEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store. A zero ttl keeps entries until deleted.
func NewStore[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		entries: make(map[string]storeEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key. Expired entries are reported as missing.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the store TTL.
func (s *Store[V]) Put(key string, value V) {
	e := storeEntry[V]{value: value}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Delete removes key.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Keys returns the live keys in sorted order.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !s.expired(e) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Cleanup removes expired entries and returns how many were dropped.
func (s *Store[V]) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *Store[V]) expired(e storeEntry[V]) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}
