// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/pdiddy/eduscout/pkg/types"
)

// MemoryStore is an in-process Store with TTL expiry and LRU eviction.
// Expired entries are purged lazily on access (R2.2); the LRU bound
// keeps memory flat under many distinct queries (R2.3).
type MemoryStore struct {
	counters

	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	key       string
	payload   []types.RawResult
	createdAt time.Time
}

// NewMemoryStore builds an in-memory cache.
func NewMemoryStore(cfg types.CacheConfig) *MemoryStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached payload for (query, provider), if fresh.
func (s *MemoryStore) Get(_ context.Context, query, provider string) ([]types.RawResult, bool, error) {
	key := Key(query, provider)

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.miss()
		return nil, false, nil
	}

	entry := el.Value.(*memoryEntry)
	if s.now().Sub(entry.createdAt) >= s.ttl {
		// Lazy purge on expiry.
		s.order.Remove(el)
		delete(s.entries, key)
		s.miss()
		return nil, false, nil
	}

	s.order.MoveToFront(el)
	s.hit()

	// Copy so callers cannot mutate the immutable payload.
	out := make([]types.RawResult, len(entry.payload))
	copy(out, entry.payload)
	return out, true, nil
}

// Set stores the payload. An existing live entry is left untouched:
// payloads are write-once (R1.3).
func (s *MemoryStore) Set(_ context.Context, query, provider string, payload []types.RawResult) error {
	key := Key(query, provider)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		if s.now().Sub(el.Value.(*memoryEntry).createdAt) < s.ttl {
			return nil
		}
		s.order.Remove(el)
		delete(s.entries, key)
	}

	stored := make([]types.RawResult, len(payload))
	copy(stored, payload)

	el := s.order.PushFront(&memoryEntry{key: key, payload: stored, createdAt: s.now()})
	s.entries[key] = el

	for s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Len reports the current entry count, for tests and the stats command.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Purge drops every entry and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.order.Len()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return n
}
