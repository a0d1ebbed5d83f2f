package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/config"
)

func testConfig() config.CacheConfig {
	return config.CacheConfig{MemoryTTL: time.Minute, RedisTTL: 5 * time.Minute, MaxEntries: 100, Prefix: "t"}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func constLoader(calls *atomic.Int64, val string) Loader {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(val), nil
	}
}

func TestGetOrLoad_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := New(testConfig(), nil, nil)
	var calls atomic.Int64

	v, hit, err := c.GetOrLoad(ctx, "theater:1", "menu", constLoader(&calls, "a"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "a", string(v))

	v, hit, err = c.GetOrLoad(ctx, "theater:1", "menu", constLoader(&calls, "b"))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "a", string(v))
	assert.Equal(t, int64(1), calls.Load())

	require.NoError(t, c.Invalidate(ctx, "theater:1"))
	v, hit, err = c.GetOrLoad(ctx, "theater:1", "menu", constLoader(&calls, "b"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "b", string(v))

	st := c.Stats()
	assert.Equal(t, int64(1), st.MemoryHits)
	assert.Equal(t, int64(2), st.Loads)
}

func TestGetOrLoad_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := New(testConfig(), nil, nil)
	var calls atomic.Int64

	_, _, _ = c.GetOrLoad(ctx, "theater:1", "k", constLoader(&calls, "one"))
	_, _, _ = c.GetOrLoad(ctx, "theater:2", "k", constLoader(&calls, "two"))
	require.NoError(t, c.Invalidate(ctx, "theater:2"))

	v, hit, _ := c.GetOrLoad(ctx, "theater:1", "k", constLoader(&calls, "x"))
	assert.True(t, hit)
	assert.Equal(t, "one", string(v))
}

func TestGetOrLoad_ConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	c := New(testConfig(), nil, nil)
	var calls atomic.Int64
	release := make(chan struct{})

	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad(ctx, "ns", "hot", load)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(v))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrLoad_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(testConfig(), nil, nil)
	boom := errors.New("db down")

	_, _, err := c.GetOrLoad(ctx, "ns", "k", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	var calls atomic.Int64
	v, hit, err := c.GetOrLoad(ctx, "ns", "k", constLoader(&calls, "ok"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", string(v))
}

func TestRedisTier_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	a := New(testConfig(), rdb, nil)
	b := New(testConfig(), rdb, nil)
	var calls atomic.Int64

	_, _, err := a.GetOrLoad(ctx, "theater:9", "menu", constLoader(&calls, "menu-v1"))
	require.NoError(t, err)

	v, hit, err := b.GetOrLoad(ctx, "theater:9", "menu", constLoader(&calls, "unused"))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "menu-v1", string(v))
	assert.Equal(t, int64(1), b.Stats().RedisHits)

	// promoted to memory on b
	_, hit, _ = b.GetOrLoad(ctx, "theater:9", "menu", constLoader(&calls, "unused"))
	assert.True(t, hit)
	assert.Equal(t, int64(1), b.Stats().MemoryHits)

	// invalidation on a is seen by b
	require.NoError(t, a.Invalidate(ctx, "theater:9"))
	v, hit, err = b.GetOrLoad(ctx, "theater:9", "menu", constLoader(&calls, "menu-v2"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "menu-v2", string(v))
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetOrLoadJSON(t *testing.T) {
	type menu struct {
		Items []string `json:"items"`
	}
	ctx := context.Background()
	c := New(testConfig(), nil, nil)
	calls := 0
	load := func(context.Context) (menu, error) {
		calls++
		return menu{Items: []string{"popcorn"}}, nil
	}

	m, err := GetOrLoadJSON(ctx, c, "ns", "menu", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"popcorn"}, m.Items)
	m, err = GetOrLoadJSON(ctx, c, "ns", "menu", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"popcorn"}, m.Items)
	assert.Equal(t, 1, calls)
}

func TestMemory_EvictsExpiredThenSoonest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newMemory(2)
	m.now = func() time.Time { return now }

	m.set("long", []byte("1"), 10*time.Second)
	m.set("short", []byte("2"), 5*time.Second)
	m.set("new", []byte("3"), 10*time.Second)

	_, ok := m.get("short")
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok = m.get("long")
	assert.True(t, ok)

	// "new" expires after 10s; advance past it and add two more
	now = now.Add(11 * time.Second)
	m.set("a", []byte("a"), time.Minute)
	m.set("b", []byte("b"), 2*time.Minute)
	assert.Equal(t, 2, m.len())
	_, ok = m.get("a")
	assert.True(t, ok)
}

func TestTheaterNamespace(t *testing.T) {
	assert.Equal(t, "theater:42", TheaterNamespace(42))
}
