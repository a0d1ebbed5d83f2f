// Package cache is a two-tier memoizing cache: a bounded in-process tier in
// front of an optional Redis tier. Concurrent misses on one key share a
// single loader call, and namespaces are versioned so that a whole
// namespace can be invalidated with one counter bump.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/theater-canteen/internal/config"
)

// Loader produces the value for a missing key.
type Loader func(ctx context.Context) ([]byte, error)

// Stats counts cache outcomes since start.
type Stats struct {
	MemoryHits  int64 `json:"memory_hits"`
	RedisHits   int64 `json:"redis_hits"`
	Misses      int64 `json:"misses"`
	Loads       int64 `json:"loads"`
	SharedLoads int64 `json:"shared_loads"`
	Entries     int   `json:"memory_entries"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mem      *memory
	rdb      *redis.Client
	memTTL   time.Duration
	redisTTL time.Duration
	prefix   string
	log      *zap.Logger

	sf singleflight.Group

	vmu      sync.Mutex
	versions map[string]int64

	memHits, redisHits, misses, loads, shared atomic.Int64
}

// New builds a cache. rdb may be nil, which disables the Redis tier.
func New(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	memTTL := cfg.MemoryTTL
	if memTTL <= 0 {
		memTTL = 30 * time.Second
	}
	redisTTL := cfg.RedisTTL
	if redisTTL <= 0 {
		redisTTL = 5 * time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	return &Cache{
		mem:      newMemory(cfg.MaxEntries),
		rdb:      rdb,
		memTTL:   memTTL,
		redisTTL: redisTTL,
		prefix:   prefix,
		log:      log,
		versions: map[string]int64{},
	}
}

// TheaterNamespace is the namespace holding everything derived from one
// theater's data.
func TheaterNamespace(theaterID uint64) string {
	return "theater:" + strconv.FormatUint(theaterID, 10)
}

// PlatformNamespace holds data that spans theaters.
const PlatformNamespace = "platform"

func (c *Cache) versionKey(ns string) string { return c.prefix + ":ver:" + ns }

// version returns the current version of ns. Redis is authoritative when
// reachable so that every instance sees an invalidation.
func (c *Cache) version(ctx context.Context, ns string) int64 {
	if c.rdb != nil {
		v, err := c.rdb.Get(ctx, c.versionKey(ns)).Int64()
		if err == nil {
			return v
		}
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache version lookup failed", zap.String("ns", ns), zap.Error(err))
		} else {
			return 0
		}
	}
	c.vmu.Lock()
	defer c.vmu.Unlock()
	return c.versions[ns]
}

func (c *Cache) fullKey(ctx context.Context, ns, key string) string {
	return c.prefix + ":" + ns + ":v" + strconv.FormatInt(c.version(ctx, ns), 10) + ":" + key
}

// Get looks key up in memory, then Redis. Redis hits are promoted to memory.
func (c *Cache) Get(ctx context.Context, ns, key string) ([]byte, bool) {
	return c.get(ctx, c.fullKey(ctx, ns, key))
}

func (c *Cache) get(ctx context.Context, fk string) ([]byte, bool) {
	if v, ok := c.mem.get(fk); ok {
		c.memHits.Add(1)
		return v, true
	}
	if c.rdb != nil {
		v, err := c.rdb.Get(ctx, fk).Bytes()
		if err == nil {
			c.redisHits.Add(1)
			c.mem.set(fk, v, c.memTTL)
			return v, true
		}
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache redis get failed", zap.String("key", fk), zap.Error(err))
		}
	}
	c.misses.Add(1)
	return nil, false
}

// Set writes val to both tiers.
func (c *Cache) Set(ctx context.Context, ns, key string, val []byte) {
	c.set(ctx, c.fullKey(ctx, ns, key), val)
}

func (c *Cache) set(ctx context.Context, fk string, val []byte) {
	c.mem.set(fk, val, c.memTTL)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, fk, val, c.redisTTL).Err(); err != nil {
			c.log.Warn("cache redis set failed", zap.String("key", fk), zap.Error(err))
		}
	}
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of the same key. The bool reports a cache hit. Loader errors are
// returned and not cached.
func (c *Cache) GetOrLoad(ctx context.Context, ns, key string, load Loader) ([]byte, bool, error) {
	fk := c.fullKey(ctx, ns, key)
	if v, ok := c.get(ctx, fk); ok {
		return v, true, nil
	}
	v, err, shared := c.sf.Do(fk, func() (any, error) {
		c.loads.Add(1)
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, fk, val)
		return val, nil
	})
	if shared {
		c.shared.Add(1)
	}
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Invalidate makes every key of ns unreachable. Old entries age out by TTL.
func (c *Cache) Invalidate(ctx context.Context, ns string) error {
	c.vmu.Lock()
	c.versions[ns]++
	c.vmu.Unlock()
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, c.versionKey(ns)).Err()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		MemoryHits:  c.memHits.Load(),
		RedisHits:   c.redisHits.Load(),
		Misses:      c.misses.Load(),
		Loads:       c.loads.Load(),
		SharedLoads: c.shared.Load(),
		Entries:     c.mem.len(),
	}
}

// GetOrLoadJSON is GetOrLoad for values encoded as JSON.
func GetOrLoadJSON[T any](ctx context.Context, c *Cache, ns, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, _, err := c.GetOrLoad(ctx, ns, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
