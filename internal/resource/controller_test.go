package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireMemory(60))
	assert.True(t, c.TryAcquireMemory(30))
	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})
	assert.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(1 << 39)
	assert.Equal(t, int64(1<<39), c.MemoryUsage())
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})
	require.True(t, c.TryAcquireBackground())
	assert.False(t, c.TryAcquireBackground())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBackground(ctx), context.DeadlineExceeded)

	c.ReleaseBackground()
	require.NoError(t, c.AcquireBackground(t.Context()))
}

func TestController_WaitIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.WaitIO(t.Context(), 100))
	require.NoError(t, c.WaitIO(t.Context(), 1<<20+10))
	assert.Equal(t, int64(1<<20+110), c.IOBytes())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Error(t, c.WaitIO(ctx, 1<<22))
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	require.NoError(t, c.WaitIO(t.Context(), 1<<30))
	assert.Zero(t, c.IOBytes())
	assert.Zero(t, c.MemoryUsage())
}
