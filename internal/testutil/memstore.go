// Package testutil provides testing utilities for the agent cache.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/agent-cache/pkg/kv"
)

// memEntry is a stored value plus its optional expiry.
type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemStore is an in-memory kv.Store for tests. It supports native TTL
// against an adjustable clock, per-operation fault injection, and call
// tracking. All methods are safe for concurrent use.
type MemStore struct {
	mu     sync.Mutex
	values map[string]memEntry
	clock  time.Time

	// Fault injection: a non-nil error makes the matching operations fail.
	// FailSets covers both Set and SetEx.
	FailGets    error
	FailSets    error
	FailDeletes error

	// Tracking
	GetCalls    int
	SetCalls    int
	SetExCalls  int
	DeleteCalls int
}

// NewMemStore creates an empty in-memory store. The TTL clock starts at the
// current wall time and only moves via Advance.
func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[string]memEntry),
		clock:  time.Now(),
	}
}

// Get returns the raw value stored under key, or kv.ErrNotFound.
func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.GetCalls++
	if s.FailGets != nil {
		return "", s.FailGets
	}

	entry, ok := s.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && s.clock.After(entry.expiresAt) {
		delete(s.values, key)
		return "", kv.ErrNotFound
	}
	return entry.value, nil
}

// Set writes value without expiry.
func (s *MemStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SetCalls++
	if s.FailSets != nil {
		return s.FailSets
	}

	s.values[key] = memEntry{value: value}
	return nil
}

// SetEx writes value with a time-to-live relative to the store clock.
func (s *MemStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SetExCalls++
	if s.FailSets != nil {
		return s.FailSets
	}

	s.values[key] = memEntry{value: value, expiresAt: s.clock.Add(ttl)}
	return nil
}

// Delete removes the given keys and returns how many of them existed.
func (s *MemStore) Delete(ctx context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DeleteCalls++
	if s.FailDeletes != nil {
		return 0, s.FailDeletes
	}

	removed := 0
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			removed++
		}
	}
	return removed, nil
}

// Advance moves the TTL clock forward. Expired entries are collected lazily
// on the next Get.
func (s *MemStore) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(d)
}

// Len returns the number of stored keys, including any whose TTL has elapsed
// but which have not been read since.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// Keys returns all stored keys in unspecified order.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	return keys
}

// Reset clears the tracking counters. Stored values are kept.
func (s *MemStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls = 0
	s.SetCalls = 0
	s.SetExCalls = 0
	s.DeleteCalls = 0
}
