package allocator

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// Key identifies one cached snapshot.
type Key struct {
	CentralID string
	Direction hardware.Direction
}

func (k Key) String() string {
	return k.CentralID + "/" + string(k.Direction)
}

// Cache stores snapshots between fetches.
//
// Implementations must hand out snapshots the caller may modify freely.
type Cache interface {
	Get(ctx context.Context, key Key) (*hardware.Snapshot, bool, error)
	Set(ctx context.Context, key Key, snap *hardware.Snapshot) error
	Invalidate(ctx context.Context, key Key) error
}

type memoryEntry struct {
	snap    *hardware.Snapshot
	expires time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry.
// All methods are safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl.
// A ttl of zero or less keeps entries until invalidated.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[Key]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a deep copy of the cached snapshot.
func (c *MemoryCache) Get(_ context.Context, key Key) (*hardware.Snapshot, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.snap.DeepCopy(), true, nil
}

// Set stores a deep copy of snap.
func (c *MemoryCache) Set(_ context.Context, key Key, snap *hardware.Snapshot) error {
	e := memoryEntry{snap: snap.DeepCopy()}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Invalidate drops the entry for key.
func (c *MemoryCache) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
