package cache

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store on go-cache with a byte quota.
// Entries never expire on their own; the local tier handles TTL.
type MemoryStore struct {
	cache *gocache.Cache
	quota int64
	used  int64
	mu    sync.Mutex
}

// NewMemoryStore creates a store holding at most quotaBytes (0 = unbounded)
func NewMemoryStore(quotaBytes int64) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 0),
		quota: quotaBytes,
	}
}

// Get retrieves a value
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	if val, found := s.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value or returns ErrQuotaExceeded
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old int64
	if prev, found := s.cache.Get(key); found {
		old = int64(len(prev.([]byte)))
	}
	next := s.used - old + int64(len(value))
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	s.cache.Set(key, buf, gocache.NoExpiration)
	s.used = next
	return nil
}

// Delete removes a value
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, found := s.cache.Get(key); found {
		s.used -= int64(len(prev.([]byte)))
		s.cache.Delete(key)
	}
	return nil
}

// Keys lists every stored key
func (s *MemoryStore) Keys() []string {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

// Used returns the bytes currently stored
func (s *MemoryStore) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}
