package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when no Redis address is
// configured, and in tests. Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is swappable so tests can step time without sleeping.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *MemoryStore) Flush(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for key := range s.entries {
		if strings.HasPrefix(key, Namespace) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
