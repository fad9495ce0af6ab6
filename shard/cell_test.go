package shard

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_SetGetAcrossSections(t *testing.T) {
	c := NewCell[*stringSection](4, 1, 2, stringAdapter{})

	c.Set(3, 5, 7, "low")
	c.Set(3, 50, 7, "high")

	v, ok := c.Get(3, 5, 7, stringKind)
	require.True(t, ok)
	assert.Equal(t, "low", v)

	v, ok = c.Get(3, 50, 7, stringKind)
	require.True(t, ok)
	assert.Equal(t, "high", v)

	assert.True(t, c.Exists(0))
	assert.False(t, c.Exists(1))
	assert.True(t, c.Exists(3))

	_, ok = c.Get(3, 20, 7, stringKind)
	assert.False(t, ok)
	assert.False(t, c.Exists(1), "reads must not create sections")

	var ys []int
	c.Iterate(stringKind, func(x, y, z int, _ any) bool {
		assert.Equal(t, 3, x)
		assert.Equal(t, 7, z)
		ys = append(ys, y)
		return true
	})
	assert.Equal(t, []int{5, 50}, ys)

	c.Remove(3, 5, 7, stringKind)
	c.TrimSlices()
	assert.False(t, c.Exists(0))
	assert.True(t, c.Exists(3))

	c.DeleteSlices(stringKind)
	c.TrimSlices()
	assert.False(t, c.Exists(3))
}

func TestCell_GetOrCreateSingleInstance(t *testing.T) {
	c := NewCell[*stringSection](1, 0, 0, stringAdapter{})

	const n = 32
	got := make([]*stringSection, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = c.GetOrCreate(0)
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}

func TestCell_Flags(t *testing.T) {
	c := NewCell[*stringSection](1, 0, 0, stringAdapter{})

	assert.True(t, c.Raise(3))
	assert.False(t, c.Raise(3))
	assert.True(t, c.IsFlagged(3))
	assert.Equal(t, uint64(1<<3), c.Flags())

	c.SetFlag(63, true)
	assert.True(t, c.IsFlagged(63))

	assert.True(t, c.Lower(3))
	assert.False(t, c.Lower(3))
	assert.False(t, c.IsFlagged(3))

	c.SetFlag(63, false)
	assert.Zero(t, c.Flags())
}

func TestCell_UseReleaseClose(t *testing.T) {
	c := NewCell[*stringSection](1, 0, 0, stringAdapter{})

	require.NoError(t, c.Use())
	require.NoError(t, c.Use())
	assert.True(t, c.InUse())

	var closed atomic.Bool
	done := make(chan struct{})
	go func() {
		c.Close()
		closed.Store(true)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, closed.Load(), "close must wait for pins")

	c.Release()
	c.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not return after pins were released")
	}
	assert.False(t, c.InUse())
	assert.True(t, c.Closed())
	assert.ErrorIs(t, c.Use(), ErrCellClosed)
}

func TestCell_CopyFrom(t *testing.T) {
	src := NewCell[*stringSection](2, 0, 0, stringAdapter{})
	src.Set(1, 17, 1, "v")
	src.SetFlag(5, true)

	dst := NewCell[*stringSection](2, 0, 0, stringAdapter{})
	dst.Set(0, 0, 0, "old")
	require.NoError(t, dst.CopyFrom(src))

	assert.False(t, dst.Exists(0))
	v, ok := dst.Get(1, 17, 1, stringKind)
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, dst.IsFlagged(5))

	dst.Close()
	assert.ErrorIs(t, dst.CopyFrom(src), ErrCellClosed)
}
