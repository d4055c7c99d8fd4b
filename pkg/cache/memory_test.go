package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "s", "hello", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "hello", s)

	type payload struct {
		N int `json:"n"`
	}
	require.NoError(t, mc.Set(ctx, "p", payload{N: 7}, time.Minute))
	var p payload
	require.NoError(t, mc.Get(ctx, "p", &p))
	assert.Equal(t, 7, p.N)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "k"))
	ok, _ = mc.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "short", time.Millisecond)
	assert.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	ok, _ = mc.TryLock(ctx, "short", time.Minute)
	assert.True(t, ok, "expired lock can be taken again")
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", "1", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", "3", 0)

	assert.Equal(t, 2, mc.Len())
	var v string
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "b", &v))
	require.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCacheCloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(time.Millisecond))
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}

func TestMemoryCacheGetRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", "1", 0)
	_ = mc.Set(ctx, "b", "2", 0)
	var v string
	require.NoError(t, mc.Get(ctx, "a", &v))
	_ = mc.Set(ctx, "c", "3", 0)

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
}

func TestMemoryCacheUnlockKeepsValues(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, mc.Unlock(ctx, "k"))
	var v string
	require.NoError(t, mc.Get(ctx, "k", &v))
	assert.Equal(t, "v", v)
}

func TestMemoryCacheSnapshotsOnSet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	events := []string{"e1"}
	require.NoError(t, mc.Set(ctx, "recent", events, time.Minute))
	events[0] = "changed"

	var got []string
	require.NoError(t, mc.Get(ctx, "recent", &got))
	assert.Equal(t, []string{"e1"}, got)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "dedup:abc", Key("dedup", "abc"))
}
