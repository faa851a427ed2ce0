package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultTTL = 1 * time.Hour

// MemoryStorage is the ephemeral backend: values disappear after TTL without
// a write, mirroring a browsing session that was simply closed.
//
// Expired values are never returned, but they are only freed by Sweep. The
// cache runs no janitor goroutine, so nothing outlives Close.
type MemoryStorage struct {
	cache *cache.Cache
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStorage{cache: cache.New(ttl, 0)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	v, found := s.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	b := v.([]byte)
	return append([]byte(nil), b...), nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, append([]byte(nil), value...), cache.DefaultExpiration)
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Sweep frees expired values.
func (s *MemoryStorage) Sweep() {
	s.cache.DeleteExpired()
}

func (s *MemoryStorage) Close() error {
	s.cache.Flush()
	return nil
}
