package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Remembers occurrences in redis, so that dedupe survives a restart and is shared between replicas. A small local TinyLFU tier absorbs repeated lookups.
type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func occurrenceCacheKey(key OccurrenceKey) string {
	return "warden/occ/" + key.String()
}

func (s *RedisCacheStore) Seen(ctx context.Context, key OccurrenceKey) (bool, error) {
	var at int64
	err := s.Data.Get(ctx, occurrenceCacheKey(key), &at)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Check and record are two round trips. Two replicas racing on the same occurrence may both handle it, which only repeats an idempotent correction.
func (s *RedisCacheStore) Remember(ctx context.Context, key OccurrenceKey) (bool, error) {
	seen, err := s.Seen(ctx, key)
	if err != nil || seen {
		return seen, err
	}
	err = s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   occurrenceCacheKey(key),
		Value: time.Now().UnixMilli(),
		TTL:   s.TTL,
	})
	return false, err
}

func (s *RedisCacheStore) Forget(ctx context.Context, key OccurrenceKey) error {
	err := s.Data.Delete(ctx, occurrenceCacheKey(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
