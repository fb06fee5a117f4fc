package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuioss/cui-jwt-sub016/pkg/cache"
	"github.com/cuioss/cui-jwt-sub016/pkg/token"
)

func TestAccessTokenCacheMissThenHit(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(10, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, ok := c.Get("raw1")
	assert.False(t, ok)

	content := token.AccessTokenContent{RawToken: "raw1"}
	c.Put("raw1", content, now.Add(time.Minute))

	got, ok := c.Get("raw1")
	require.True(t, ok)
	assert.Equal(t, "raw1", got.RawToken)
}

func TestAccessTokenCacheSkewEvictsBeforeExpiry(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(10, cache.WithClock(func() time.Time { return now }), cache.WithExpirySkew(10*time.Second))
	require.NoError(t, err)

	content := token.AccessTokenContent{RawToken: "raw1"}
	c.Put("raw1", content, now.Add(5*time.Second)) // within skew window: treated as already expired

	_, ok := c.Get("raw1")
	assert.False(t, ok)
}

func TestAccessTokenCacheEntryExpiresOverTime(t *testing.T) {
	current := time.Now().UTC()
	clock := func() time.Time { return current }
	c, err := cache.New(10, cache.WithClock(clock), cache.WithExpirySkew(time.Second))
	require.NoError(t, err)

	content := token.AccessTokenContent{RawToken: "raw1"}
	c.Put("raw1", content, current.Add(2*time.Second))

	_, ok := c.Get("raw1")
	require.True(t, ok)

	current = current.Add(5 * time.Second)
	_, ok = c.Get("raw1")
	assert.False(t, ok, "entry past exp-skew must be treated as a miss")
	assert.Equal(t, 0, c.Len(), "stale hit must be evicted, not merely ignored")
}

func TestAccessTokenCacheCapacityZeroDisables(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(0, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c.Put("raw1", token.AccessTokenContent{RawToken: "raw1"}, now.Add(time.Minute))
	_, ok := c.Get("raw1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestAccessTokenCacheLRUEviction(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(2, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c.Put("a", token.AccessTokenContent{RawToken: "a"}, now.Add(time.Hour))
	c.Put("b", token.AccessTokenContent{RawToken: "b"}, now.Add(time.Hour))
	c.Put("c", token.AccessTokenContent{RawToken: "c"}, now.Add(time.Hour)) // evicts "a"

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestAccessTokenCachePurge(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(10, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c.Put("a", token.AccessTokenContent{RawToken: "a"}, now.Add(time.Hour))
	require.Equal(t, 1, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestAccessTokenCacheDistinctRawTokensDoNotCollide(t *testing.T) {
	now := time.Now().UTC()
	c, err := cache.New(10, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c.Put("token-one", token.AccessTokenContent{RawToken: "token-one"}, now.Add(time.Hour))
	c.Put("token-two", token.AccessTokenContent{RawToken: "token-two"}, now.Add(time.Hour))

	got1, ok1 := c.Get("token-one")
	got2, ok2 := c.Get("token-two")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, "token-one", got1.RawToken)
	assert.Equal(t, "token-two", got2.RawToken)
}
