package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	inner   *fakeCache
	lookups int
}

func (c *countingCache) LookupPlace(ctx context.Context, lat, lon float64) (string, bool) {
	c.lookups++
	return c.inner.LookupPlace(ctx, lat, lon)
}

func (c *countingCache) StorePlace(ctx context.Context, lat, lon float64, name string) error {
	return c.inner.StorePlace(ctx, lat, lon, name)
}

func TestMemCache_LookupHitSkipsInner(t *testing.T) {
	inner := &countingCache{inner: newFakeCache()}
	inner.inner.entries[coord{38.5, 27.0}] = "İzmir, Türkiye"
	mc := NewMemCache(inner, 10)

	name, ok := mc.LookupPlace(context.Background(), 38.5, 27.0)
	require.True(t, ok)
	assert.Equal(t, "İzmir, Türkiye", name)

	name, ok = mc.LookupPlace(context.Background(), 38.5, 27.0)
	require.True(t, ok)
	assert.Equal(t, "İzmir, Türkiye", name)

	assert.Equal(t, 1, inner.lookups, "second lookup should be served from memory")
}

func TestMemCache_StoreWritesThrough(t *testing.T) {
	inner := &countingCache{inner: newFakeCache()}
	mc := NewMemCache(inner, 10)

	require.NoError(t, mc.StorePlace(context.Background(), 38.5, 27.0, "İzmir, Türkiye"))

	// Durable below.
	name, ok := inner.inner.LookupPlace(context.Background(), 38.5, 27.0)
	require.True(t, ok)
	assert.Equal(t, "İzmir, Türkiye", name)

	// And served from memory above.
	_, _ = mc.LookupPlace(context.Background(), 38.5, 27.0)
	assert.Zero(t, inner.lookups)
}

func TestMemCache_StoreErrorDoesNotPopulateMemory(t *testing.T) {
	inner := &countingCache{inner: newFakeCache()}
	inner.inner.storeErr = context.DeadlineExceeded
	mc := NewMemCache(inner, 10)

	require.Error(t, mc.StorePlace(context.Background(), 38.5, 27.0, "İzmir, Türkiye"))

	_, ok := mc.LookupPlace(context.Background(), 38.5, 27.0)
	assert.False(t, ok)
}

func TestMemCache_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingCache{inner: newFakeCache()}
	mc := NewMemCache(inner, 2)

	require.NoError(t, mc.StorePlace(context.Background(), 1, 1, "one"))
	require.NoError(t, mc.StorePlace(context.Background(), 2, 2, "two"))

	// Touch (1,1) so (2,2) becomes the eviction candidate.
	_, _ = mc.LookupPlace(context.Background(), 1, 1)

	require.NoError(t, mc.StorePlace(context.Background(), 3, 3, "three"))

	inner.lookups = 0
	_, _ = mc.LookupPlace(context.Background(), 1, 1)
	assert.Zero(t, inner.lookups, "(1,1) should still be in memory")

	_, _ = mc.LookupPlace(context.Background(), 2, 2)
	assert.Equal(t, 1, inner.lookups, "(2,2) should have been evicted to the durable layer")
}
