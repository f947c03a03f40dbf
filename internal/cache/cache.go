// Package cache keeps recent generation results in memory so repeated
// requests for the same code and options skip the provider round trip.
// Entries expire after a TTL and the store evicts the oldest entry when
// full.
package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/testweaver-ai/testweaver/internal/consts"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

type entry struct {
	value     string
	storedAt  time.Time
	expiresAt time.Time
}

// Store is an in-memory result cache with TTL expiry and a bounded entry
// count. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	entries    map[uint64]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a store with the default TTL and size bound
func New() *Store {
	return NewWithLimits(consts.DefaultCacheTTL, consts.DefaultCacheMaxEntries)
}

// NewWithLimits creates a store with explicit TTL and entry bounds.
// Non-positive values fall back to the defaults.
func NewWithLimits(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = consts.DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = consts.DefaultCacheMaxEntries
	}
	return &Store{
		entries:    make(map[uint64]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key derives a cache key from the model, the option fingerprint, and the
// source code. The parts are length-delimited before hashing so that
// shifting bytes between fields cannot produce a collision.
func Key(modelID, options, code string) uint64 {
	digest := xxhash.New()
	for _, part := range []string{modelID, options, code} {
		var length [8]byte
		n := len(part)
		for i := 0; i < 8; i++ {
			length[i] = byte(n >> (8 * i))
		}
		_, _ = digest.Write(length[:])
		_, _ = digest.WriteString(part)
	}
	return digest.Sum64()
}

// Get returns the cached value for a key, or false when the key is absent
// or expired. Expired entries are removed on access.
func (s *Store) Get(key uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(ent.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return ent.value, true
}

// Put stores a value under a key, evicting the oldest entry when the store
// is at capacity.
func (s *Store) Put(key uint64, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[key] = entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(s.ttl),
	}
}

// Len returns the number of live entries, purging expired ones
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, key)
		}
	}
	return len(s.entries)
}

// Clear removes all entries
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[uint64]entry)
}

func (s *Store) evictOldestLocked() {
	var oldestKey uint64
	var oldestAt time.Time
	first := true
	for key, ent := range s.entries {
		if first || ent.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = ent.storedAt
			first = false
		}
	}
	if !first {
		logger.Debug("cache: evicting oldest entry to stay under %d entries", s.maxEntries)
		delete(s.entries, oldestKey)
	}
}
