package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

func testResult(asset string, horizon int) *models.ForecastResult {
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &models.ForecastResult{
		AssetID:     asset,
		Horizon:     horizon,
		Model:       "damped_trend",
		GeneratedAt: last,
	}
	for i, ts := range models.FutureHours(last, horizon) {
		r.Points = append(r.Points, models.ForecastPoint{Timestamp: ts, Price: 100 + float64(i)})
	}
	return r
}

func newRedis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// forEachCache runs the shared contract against both backends.
func forEachCache(t *testing.T, fn func(t *testing.T, c ForecastCache)) {
	t.Run("lru", func(t *testing.T) {
		c, err := NewLRU(8)
		require.NoError(t, err)
		fn(t, c)
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, newRedis(t))
	})
}

func TestCache_PutGet(t *testing.T) {
	forEachCache(t, func(t *testing.T, c ForecastCache) {
		ctx := context.Background()
		key := Key{AssetID: "bitcoin", Horizon: 3}

		_, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		want := testResult("bitcoin", 3)
		require.NoError(t, c.Put(ctx, key, want))

		got, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.Prices(), got.Prices())
		assert.True(t, want.Points[0].Timestamp.Equal(got.Points[0].Timestamp))
	})
}

func TestCache_InvalidateDropsEveryHorizonOfAsset(t *testing.T) {
	forEachCache(t, func(t *testing.T, c ForecastCache) {
		ctx := context.Background()
		require.NoError(t, c.Put(ctx, Key{"bitcoin", 6}, testResult("bitcoin", 6)))
		require.NoError(t, c.Put(ctx, Key{"bitcoin", 24}, testResult("bitcoin", 24)))
		require.NoError(t, c.Put(ctx, Key{"ethereum", 24}, testResult("ethereum", 24)))

		require.NoError(t, c.Invalidate(ctx, "bitcoin"))

		n, err := c.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, ok, err := c.Get(ctx, Key{"ethereum", 24})
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, c.Purge(ctx))
		n, err = c.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCache_PutNil(t *testing.T) {
	forEachCache(t, func(t *testing.T, c ForecastCache) {
		assert.Error(t, c.Put(context.Background(), Key{"bitcoin", 1}, nil))
	})
}

func TestLRU_ReturnsSamePointer(t *testing.T) {
	c, err := NewLRU(0)
	require.NoError(t, err)
	ctx := context.Background()

	want := testResult("bitcoin", 2)
	require.NoError(t, c.Put(ctx, Key{"bitcoin", 2}, want))

	got, ok, err := c.Get(ctx, Key{"bitcoin", 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, want, got)
}

func TestLRU_Evicts(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)
	ctx := context.Background()

	for h := 1; h <= 3; h++ {
		require.NoError(t, c.Put(ctx, Key{"bitcoin", h}, testResult("bitcoin", h)))
	}

	n, _ := c.Len(ctx)
	assert.Equal(t, 2, n)
	_, ok, _ := c.Get(ctx, Key{"bitcoin", 1})
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestRedisCache_KeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(context.Background(), Key{"bitcoin", 24}, testResult("bitcoin", 24)))
	assert.True(t, mr.Exists("quotecast:forecast:bitcoin:24"))
}

func TestRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), "", 4, RedisOptions{})
	require.NoError(t, err)
	assert.IsType(t, &LRU{}, c)

	_, err = New(context.Background(), "memcached", 4, RedisOptions{})
	assert.Error(t, err)
}
