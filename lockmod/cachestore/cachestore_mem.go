package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	// guards check-and-add in Remember; the LRU itself is already safe for concurrent use
	lk   sync.Mutex
	Data *expirable.LRU[OccurrenceKey, time.Time]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[OccurrenceKey, time.Time](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Seen(ctx context.Context, key OccurrenceKey) (bool, error) {
	_, ok := s.Data.Peek(key)
	return ok, nil
}

func (s *MemCacheStore) Remember(ctx context.Context, key OccurrenceKey) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.Data.Peek(key); ok {
		return true, nil
	}
	s.Data.Add(key, time.Now())
	return false, nil
}

func (s *MemCacheStore) Forget(ctx context.Context, key OccurrenceKey) error {
	s.Data.Remove(key)
	return nil
}
