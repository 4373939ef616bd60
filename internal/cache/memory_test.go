package cache

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() (*MemoryCache, *time.Time) {
	c := NewMemoryCache(metrics.NewNoop(), 0)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, OrderKey("o-1"), []byte(`{"id":"o-1"}`), OrderTTL))

	v, ok, err := c.Get(ctx, OrderKey("o-1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"o-1"}`, string(v))
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, now := newTestCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)

	*now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	c.evictExpired()
	assert.Empty(t, c.items)
}

func TestMemoryCache_DeleteMany(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()
	_ = c.Set(ctx, OrdersKey("u-1"), []byte("a"), OrderTTL)
	_ = c.Set(ctx, CartKey("u-1"), []byte("b"), OrderTTL)
	_ = c.Set(ctx, ProductKey("p-1"), []byte("c"), CatalogTTL)

	require.NoError(t, c.Delete(ctx, OrdersKey("u-1"), CartKey("u-1"), "missing"))

	_, ok, _ := c.Get(ctx, OrdersKey("u-1"))
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, CartKey("u-1"))
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, ProductKey("p-1"))
	assert.True(t, ok)
}

func TestMemoryCache_SetIfVersion(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()
	key := OrdersKey("cust-1")

	v0, err := c.Version(ctx, key)
	require.NoError(t, err)

	stored, err := c.SetIfVersion(ctx, key, v0, []byte("fresh"), OrderTTL)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, c.Delete(ctx, key))
	v1, err := c.Version(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, v0+1, v1)

	// A fill that read before the delete is dropped.
	stored, err = c.SetIfVersion(ctx, key, v0, []byte("stale"), OrderTTL)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, key)
	assert.False(t, ok)

	stored, err = c.SetIfVersion(ctx, key, v1, []byte("fresh"), OrderTTL)
	require.NoError(t, err)
	assert.True(t, stored)
	v, ok, _ := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "fresh", string(v))
}

func TestMemoryCache_Hash(t *testing.T) {
	c, now := newTestCache()
	ctx := context.Background()

	require.NoError(t, c.HashSet(ctx, "h", "a", []byte("1"), time.Minute))
	require.NoError(t, c.HashSet(ctx, "h", "b", []byte("2"), time.Minute))

	v, ok, _ := c.HashGet(ctx, "h", "b")
	assert.True(t, ok)
	assert.Equal(t, "2", string(v))

	_, ok, _ = c.HashGet(ctx, "h", "c")
	assert.False(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok, _ = c.HashGet(ctx, "h", "a")
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()
	src := []byte("abc")
	_ = c.Set(ctx, "k", src, 0)
	src[0] = 'x'

	v, _, _ := c.Get(ctx, "k")
	v[1] = 'y'

	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestJSONHelpers(t *testing.T) {
	c, _ := newTestCache()
	ctx := context.Background()
	type payload struct {
		ID string `json:"id"`
	}

	require.NoError(t, SetJSON(ctx, c, "k", payload{ID: "x"}, time.Minute))

	var out payload
	ok, err := GetJSON(ctx, c, "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", out.ID)

	_ = c.Set(ctx, "bad", []byte("{"), time.Minute)
	ok, err = GetJSON(ctx, c, "bad", &out)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order:o-1", OrderKey("o-1"))
	assert.Equal(t, "orders:u-1", OrdersKey("u-1"))
	assert.Equal(t, "cart:u-1", CartKey("u-1"))
	assert.Equal(t, "product:p-1", ProductKey("p-1"))
	assert.Equal(t, "orders", family("orders:u-1"))
}

func TestMemoryCache_CloseStopsJanitor(t *testing.T) {
	c := NewMemoryCache(nil, time.Millisecond)
	c.Close()
	c.Close()
}
