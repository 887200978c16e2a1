package allocator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// RedisCache shares snapshots between console instances through Redis.
// Entries are stored as JSON under "<prefix>:<central>:<direction>".
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithRedisPrefix sets the key prefix. Surrounding colons are trimmed.
func WithRedisPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCache) { c.prefix = strings.Trim(prefix, ":") }
}

// WithRedisTTL sets the entry expiry. Zero keeps entries until invalidated.
func WithRedisTTL(d time.Duration) RedisCacheOption {
	return func(c *RedisCache) { c.ttl = d }
}

// NewRedisCache creates a cache over an existing Redis client.
func NewRedisCache(rdb redis.Cmdable, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		prefix: "graylogic:snapshot",
		ttl:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(k Key) string {
	return c.prefix + ":" + k.CentralID + ":" + string(k.Direction)
}

// Get fetches and decodes a snapshot. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key Key) (*hardware.Snapshot, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var snap hardware.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding cached snapshot %s: %w", key, err)
	}
	return &snap, true, nil
}

// Set encodes and stores a snapshot.
func (c *RedisCache) Set(ctx context.Context, key Key, snap *hardware.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the entry for key.
func (c *RedisCache) Invalidate(ctx context.Context, key Key) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
