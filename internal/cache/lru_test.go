package cache

import (
	"testing"

	"github.com/hupe1980/gridstore/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(10, nil)
	c.Set("a", make([]byte, 4))
	c.Set("b", make([]byte, 4))

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", make([]byte, 4))
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())
	assert.Equal(t, 2, c.Len())
}

func TestLRU_OversizedAndReplace(t *testing.T) {
	c := NewLRU(10, nil)
	c.Set("big", make([]byte, 11))
	_, ok := c.Get("big")
	assert.False(t, ok)

	c.Set("k", make([]byte, 3))
	c.Set("k", make([]byte, 7))
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Len(t, v, 7)
	assert.Equal(t, int64(7), c.Size())
}

func TestLRU_MemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 6})
	c := NewLRU(100, rc)

	c.Set("a", make([]byte, 5))
	c.Set("b", make([]byte, 5))
	_, ok := c.Get("b")
	assert.False(t, ok, "denied by the memory budget")
	assert.Equal(t, int64(5), rc.MemoryUsage())

	c.Invalidate("a")
	assert.Zero(t, rc.MemoryUsage())

	c.Set("b", make([]byte, 5))
	c.Purge()
	assert.Zero(t, c.Len())
	assert.Zero(t, rc.MemoryUsage())
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU(100, nil)
	c.Set("k", []byte{1})
	c.Get("k")
	c.Get("missing")

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}
