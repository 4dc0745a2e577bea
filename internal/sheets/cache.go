package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the complete content of one sheet at FetchedAt. Rows are shared
// between readers and must be treated as read-only.
type Snapshot struct {
	Sheet     Sheet     `json:"sheet"`
	Rows      []Row     `json:"rows"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotCache stores whole-sheet snapshots.
type SnapshotCache interface {
	Get(ctx context.Context, sheet Sheet) (Snapshot, bool, error)
	Put(ctx context.Context, snap Snapshot) error
	Invalidate(ctx context.Context, sheet Sheet) error
}

// MemoryCache keeps snapshots in process. A zero ttl never expires entries.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[Sheet]Snapshot
	now   func() time.Time
}

// NewMemoryCache constructs an in-process cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, items: make(map[Sheet]Snapshot), now: time.Now}
}

// Get returns a cached snapshot.
func (c *MemoryCache) Get(ctx context.Context, sheet Sheet) (Snapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.items[sheet]
	if !ok {
		return Snapshot{}, false, nil
	}
	if c.ttl > 0 && c.now().Sub(snap.FetchedAt) > c.ttl {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Put replaces the sheet snapshot wholesale.
func (c *MemoryCache) Put(ctx context.Context, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[snap.Sheet] = snap
	return nil
}

// Invalidate drops the sheet snapshot.
func (c *MemoryCache) Invalidate(ctx context.Context, sheet Sheet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, sheet)
	return nil
}

const invalidationChannel = "sheets.bump"

// RedisCache shares snapshots between the server and worker processes. Each
// sheet carries a version counter; invalidation bumps it so stale payloads are
// never read again and expire by ttl.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis backed snapshot cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func versionKey(sheet Sheet) string {
	return fmt.Sprintf("sheets:%s:version", sheet)
}

func (c *RedisCache) dataKey(ctx context.Context, sheet Sheet) (string, error) {
	ver, err := c.client.Get(ctx, versionKey(sheet)).Int64()
	if err == redis.Nil {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("sheets:%s:%d", sheet, ver), nil
}

// Get loads the snapshot for the current version.
func (c *RedisCache) Get(ctx context.Context, sheet Sheet) (Snapshot, bool, error) {
	key, err := c.dataKey(ctx, sheet)
	if err != nil {
		return Snapshot{}, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Put stores the snapshot under the current version.
func (c *RedisCache) Put(ctx context.Context, snap Snapshot) error {
	key, err := c.dataKey(ctx, snap.Sheet)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the sheet version and announces it.
func (c *RedisCache) Invalidate(ctx context.Context, sheet Sheet) error {
	ver, err := c.client.Incr(ctx, versionKey(sheet)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, invalidationChannel, string(sheet)+":"+strconv.FormatInt(ver, 10)).Err()
}
