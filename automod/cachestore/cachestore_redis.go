package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// entries held in the process-local tier, in front of redis
const localCacheSize = 10_000

// Two-tier cache: a process-local TinyLFU backed by redis, so repeat checks from any replica see the same entries. Both tiers expire entries after TTL.
type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(rdb *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		Data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(localCacheSize, ttl),
		}),
		TTL: ttl,
	}
}

func (s *RedisCacheStore) item(ctx context.Context, name, key, val string) *cache.Item {
	return &cache.Item{
		Ctx:   ctx,
		Key:   "cache/" + cacheKey(name, key),
		Value: val,
		TTL:   s.TTL,
	}
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	it := s.item(ctx, name, key, "")
	switch err := s.Data.Get(ctx, it.Key, &val); {
	case errors.Is(err, cache.ErrCacheMiss):
		return "", nil
	case err != nil:
		return "", err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.Data.Set(s.item(ctx, name, key, val))
}
