package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited, except
// MaxBackgroundWorkers which defaults to 1.
type Config struct {
	// MemoryLimitBytes caps bytes held by read caches.
	MemoryLimitBytes int64

	// MaxBackgroundWorkers caps concurrent maintenance passes.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec caps region read and write throughput.
	IOLimitBytesPerSec int64
}

// Controller arbitrates cache memory, maintenance slots and region IO.
// A nil Controller grants everything.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	bgSem *semaphore.Weighted

	ioLimiter *rate.Limiter
	ioBytes   atomic.Int64
}

// NewController returns a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// TryAcquireMemory reserves bytes without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns bytes reserved by TryAcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// TryAcquireBackground reserves a maintenance slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// AcquireBackground waits for a maintenance slot.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseBackground frees a maintenance slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// WaitIO blocks until n bytes of IO budget are available. Requests larger
// than the limiter burst are admitted in burst-sized steps.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	c.ioBytes.Add(int64(n))
	if c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// IOBytes returns the total bytes admitted by WaitIO.
func (c *Controller) IOBytes() int64 {
	if c == nil {
		return 0
	}
	return c.ioBytes.Load()
}
