package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/rs/zerolog/log"
)

type lruEntry struct {
	token     string
	expiresAt time.Time
}

// LRUStore keeps tokens in process. When full, the least recently used entry is evicted.
// Expired entries are dropped lazily on lookup.
//
// Lookups only take the read lock, so concurrent hits never wait on each other. A hit moves
// the entry to the front when the write lock is free; under contention the move is skipped
// and eviction order is approximate.
type LRUStore struct {
	mu      sync.RWMutex
	entries *simplelru.LRU
	ttl     time.Duration
	nowFunc func() time.Time
}

var _ Store = (*LRUStore)(nil)

func NewLRUStore(ttl time.Duration, maxEntries int, opts ...Option) (*LRUStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	entries, err := simplelru.NewLRU(maxEntries, func(key, _ interface{}) {
		log.Debug().Str("key", string(key.(Key))).Msg("Token cache entry dropped")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	o := buildOptions(opts)
	return &LRUStore{entries: entries, ttl: ttl, nowFunc: o.nowFunc}, nil
}

func (s *LRUStore) Get(_ context.Context, key Key) (string, bool) {
	s.mu.RLock()
	v, ok := s.entries.Peek(key)
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	entry := v.(lruEntry)
	if !s.nowFunc().Before(entry.expiresAt) {
		s.mu.Lock()
		// Only drop the entry read above; a concurrent Add may have replaced it.
		if current, ok := s.entries.Peek(key); ok && current.(lruEntry) == entry {
			s.entries.Remove(key)
		}
		s.mu.Unlock()
		return "", false
	}

	if s.mu.TryLock() {
		s.entries.Get(key)
		s.mu.Unlock()
	}
	return entry.token, true
}

func (s *LRUStore) Add(_ context.Context, key Key, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(key, lruEntry{token: token, expiresAt: s.nowFunc().Add(s.ttl)})
}

func (s *LRUStore) Remove(_ context.Context, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(key)
}

// Len counts stored entries, including expired ones not yet looked up.
func (s *LRUStore) Len(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Len()
}

func (s *LRUStore) Purge(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Purge()
}
