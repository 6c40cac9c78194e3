// Package cache holds the Redis-backed label id cache and run lock.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LabelCache maps label names to provider ids.
type LabelCache interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, id string) error
	Delete(ctx context.Context, name string) error
}

// RedisLabelCache stores ids under "labels:<name>" with a TTL.
type RedisLabelCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisLabelCache builds the cache.
func NewRedisLabelCache(client redis.Cmdable, ttl time.Duration) *RedisLabelCache {
	return &RedisLabelCache{client: client, ttl: ttl}
}

func labelKey(name string) string {
	return "labels:" + name
}

func (c *RedisLabelCache) Get(ctx context.Context, name string) (string, bool, error) {
	id, err := c.client.Get(ctx, labelKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *RedisLabelCache) Set(ctx context.Context, name, id string) error {
	return c.client.Set(ctx, labelKey(name), id, c.ttl).Err()
}

func (c *RedisLabelCache) Delete(ctx context.Context, name string) error {
	return c.client.Del(ctx, labelKey(name)).Err()
}

// MemoryLabelCache is a process-local LabelCache without expiry.
type MemoryLabelCache struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemoryLabelCache builds an empty cache.
func NewMemoryLabelCache() *MemoryLabelCache {
	return &MemoryLabelCache{ids: map[string]string{}}
}

func (c *MemoryLabelCache) Get(_ context.Context, name string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[name]
	return id, ok, nil
}

func (c *MemoryLabelCache) Set(_ context.Context, name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[name] = id
	return nil
}

func (c *MemoryLabelCache) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, name)
	return nil
}
