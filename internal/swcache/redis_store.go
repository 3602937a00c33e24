package swcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each cache in a Redis hash keyed by request, plus a set of
// cache names so old versions can be found and dropped.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a store under the given key prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "swcache"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":caches"
}

func (s *RedisStore) cacheKey(cache string) string {
	return s.prefix + ":cache:" + cache
}

func (s *RedisStore) Get(ctx context.Context, cache, key string) (Snapshot, bool, error) {
	raw, err := s.client.HGet(ctx, s.cacheKey(cache), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("swcache: redis get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("swcache: decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *RedisStore) Put(ctx context.Context, cache, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("swcache: encode snapshot: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.namesKey(), cache)
	pipe.HSet(ctx, s.cacheKey(cache), key, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("swcache: redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) Caches(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("swcache: redis caches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) DeleteCache(ctx context.Context, cache string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.cacheKey(cache))
	pipe.SRem(ctx, s.namesKey(), cache)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("swcache: redis delete cache: %w", err)
	}
	return nil
}
