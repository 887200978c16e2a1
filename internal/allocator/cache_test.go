package allocator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	key := Key{CentralID: "central-1", Direction: hardware.DirectionInput}

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get() on empty cache = %v, %v", ok, err)
	}

	snap := snapshot(hardware.DirectionInput, port(0, 4, 1, "kp-1"))
	if err := c.Set(ctx, key, snap); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	// Mutating the stored original must not leak into the cache.
	snap.Ports[0].Slots[0].ID = "changed"

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Ports[0].Slots[0].ID != "kp-1" {
		t.Errorf("cached slot = %q, want kp-1", got.Ports[0].Slots[0].ID)
	}

	// Nor must mutating a returned copy.
	got.Ports[0].Slots[0].ID = "changed"
	again, _, _ := c.Get(ctx, key)
	if again.Ports[0].Slots[0].ID != "kp-1" {
		t.Error("Get() returned a shared snapshot")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache(30 * time.Second)
	c.now = func() time.Time { return now }
	key := Key{CentralID: "central-1", Direction: hardware.DirectionOutput}

	if err := c.Set(ctx, key, snapshot(hardware.DirectionOutput)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	now = now.Add(29 * time.Second)
	if _, ok, _ := c.Get(ctx, key); !ok {
		t.Error("entry expired early")
	}

	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Error("entry served after ttl")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed", c.Len())
	}
}

func TestMemoryCacheNoTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	c.now = func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }
	key := Key{CentralID: "central-1", Direction: hardware.DirectionInput}

	_ = c.Set(ctx, key, snapshot(hardware.DirectionInput))
	if _, ok, _ := c.Get(ctx, key); !ok {
		t.Error("entry without ttl expired")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	in := Key{CentralID: "central-1", Direction: hardware.DirectionInput}
	out := Key{CentralID: "central-1", Direction: hardware.DirectionOutput}

	_ = c.Set(ctx, in, snapshot(hardware.DirectionInput))
	_ = c.Set(ctx, out, snapshot(hardware.DirectionOutput))

	if err := c.Invalidate(ctx, in); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, in); ok {
		t.Error("invalidated entry still served")
	}
	if _, ok, _ := c.Get(ctx, out); !ok {
		t.Error("unrelated entry dropped")
	}
}

func TestRedisCacheKey(t *testing.T) {
	c := NewRedisCache(nil, WithRedisPrefix(":installer:snap:"), WithRedisTTL(time.Minute))
	got := c.key(Key{CentralID: "central-1", Direction: hardware.DirectionInput})
	if want := "installer:snap:central-1:input"; got != want {
		t.Errorf("key() = %q, want %q", got, want)
	}
	if c.ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", c.ttl)
	}
}

// TestRedisCacheIntegration runs against a real server when
// GRAYLOGIC_TEST_REDIS_ADDR is set.
func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("GRAYLOGIC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GRAYLOGIC_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	c := NewRedisCache(rdb, WithRedisPrefix("graylogic:test:"+t.Name()))
	key := Key{CentralID: "central-1", Direction: hardware.DirectionInput}
	t.Cleanup(func() { _ = c.Invalidate(context.Background(), key) })

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get() before Set = %v, %v", ok, err)
	}

	snap := snapshot(hardware.DirectionInput, port(0, 4, 1, "kp-1"))
	if err := c.Set(ctx, key, snap); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Ports[0].Slots[0] == nil || got.Ports[0].Slots[0].ID != "kp-1" {
		t.Errorf("decoded slot = %+v", got.Ports[0].Slots[0])
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Error("entry served after Invalidate")
	}
}
