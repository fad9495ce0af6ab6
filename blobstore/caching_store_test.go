package blobstore

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, name string) ([]byte, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, name)
}

func TestCachingStore_ReadThrough(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	ctx := t.Context()
	require.NoError(t, inner.Put(ctx, "a", []byte("alpha")))

	s := NewCachingStore(inner, cache.NewLRU(1<<10, nil))

	for i := 0; i < 3; i++ {
		data, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "alpha", string(data))
	}
	assert.Equal(t, int32(1), inner.gets.Load())

	hits, misses := s.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)

	require.NoError(t, s.Put(ctx, "a", []byte("beta")))
	data, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))
	assert.Equal(t, int32(2), inner.gets.Load())

	require.NoError(t, s.Delete(ctx, "a"))
	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Get(ctx, "a")
	assert.True(t, IsNotFound(err))
}

func TestCachingStore_Prefetch(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	ctx := t.Context()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, inner.Put(ctx, name, []byte(name)))
	}

	s := NewCachingStore(inner, cache.NewLRU(1<<10, nil))
	require.NoError(t, s.Prefetch(ctx, "a", "b", "c", "missing"))
	assert.Equal(t, int32(4), inner.gets.Load())

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Get(ctx, name)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(4), inner.gets.Load())

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}
