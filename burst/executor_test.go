package burst

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_CompleteWaitsForAll(t *testing.T) {
	p := NewPool("test", WithWorkers(4))
	defer p.Close()

	var n atomic.Int32
	b := p.Burst(100, true)
	for i := 0; i < 100; i++ {
		b.Queue(func(context.Context) error {
			time.Sleep(time.Millisecond)
			n.Add(1)
			return nil
		})
	}
	require.NoError(t, b.Complete())
	assert.Equal(t, int32(100), n.Load())
}

func TestExecutor_ReportsFirstError(t *testing.T) {
	var reported []error
	p := NewPool("test", WithWorkers(2), WithErrorHandler(func(err error) { reported = append(reported, err) }))
	defer p.Close()

	boom := errors.New("boom")
	b := p.Burst(3, true).QueueAll(
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
		func(context.Context) error { return nil },
	)
	err := b.Complete()
	assert.ErrorIs(t, err, boom)
	require.Len(t, reported, 1)

	// Reusable after Complete.
	require.NoError(t, b.Queue(func(context.Context) error { return nil }).Complete())
}

func TestExecutor_InlineWhenNotMulticore(t *testing.T) {
	p := NewPool("test")
	b := p.Burst(2, false)
	assert.False(t, b.Multicore())

	ran := false
	b.Queue(func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran, "inline task must run before Queue returns")
	assert.False(t, p.Running(), "inline executor must not start the pool")

	boom := errors.New("inline")
	b.Queue(func(context.Context) error { return boom })
	assert.ErrorIs(t, b.Complete(), boom)
}
