package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"racha-core/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores cache entries as JSON with a Redis-side TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(fingerprint string) string {
	return "interpretation:" + fingerprint
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*entity.CacheEntry, error) {
	raw, err := c.client.Get(ctx, cacheKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var e entity.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	if e.Expired(time.Now(), c.ttl) {
		return nil, nil
	}
	return &e, nil
}

func (c *RedisCache) Put(ctx context.Context, entry *entity.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(entry.Fingerprint), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
