package burst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is returned by Close when workers outlive the close
// timeout. Their context has been cancelled by then.
var ErrShutdownTimeout = errors.New("burst: shutdown timed out")

// Task is a unit of work. ctx is cancelled on forced shutdown.
type Task func(ctx context.Context) error

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of worker goroutines.
// Values <= 0 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger for shutdown progress and task panics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithErrorHandler sets the callback receiving task failures reported by
// Executor.Complete and recovered panics.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Pool) {
		if fn != nil {
			p.onError = fn
		}
	}
}

// WithCloseTimeout bounds how long Close waits before forcing shutdown.
func WithCloseTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.closeTimeout = d
		}
	}
}

// WithCloseInterval sets how often Close logs while waiting.
func WithCloseInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.closeInterval = d
		}
	}
}

// Pool is a lazily started, bounded worker pool. It starts on first
// submission and is recreated transparently when used after Close.
type Pool struct {
	name          string
	workers       int
	logger        *slog.Logger
	onError       func(error)
	closeTimeout  time.Duration
	closeInterval time.Duration

	mu   sync.Mutex
	rt   atomic.Pointer[workers]
	last atomic.Int64
}

// NewPool creates a Pool. No goroutines are started until first use.
func NewPool(name string, opts ...Option) *Pool {
	p := &Pool{
		name:          name,
		workers:       runtime.GOMAXPROCS(0),
		logger:        slog.New(slog.DiscardHandler),
		onError:       func(error) {},
		closeTimeout:  10 * time.Second,
		closeInterval: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Running reports whether worker goroutines are currently started.
func (p *Pool) Running() bool {
	rt := p.rt.Load()
	return rt != nil && !rt.closed.Load()
}

// LastUse returns the time of the most recent submission.
func (p *Pool) LastUse() time.Time {
	ns := p.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (p *Pool) service() *workers {
	if rt := p.rt.Load(); rt != nil && !rt.closed.Load() {
		return rt
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rt := p.rt.Load(); rt != nil && !rt.closed.Load() {
		return rt
	}
	rt := startWorkers(p.workers, p.logger, p.name)
	p.rt.Store(rt)
	return rt
}

func (p *Pool) submit(fn func(ctx context.Context)) {
	p.last.Store(time.Now().UnixNano())
	for {
		if p.service().submit(fn) {
			return
		}
	}
}

// Go runs task asynchronously and returns its future.
func (p *Pool) Go(task Task) *Future[struct{}] {
	return Submit(p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
}

// Submit runs fn on p and returns a future for its result.
func Submit[T any](p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	p.submit(func(ctx context.Context) {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("burst: task panicked: %v", r)
				p.logger.Error("burst task panicked",
					"pool", p.name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				p.onError(err)
			}
			f.complete(v, err)
		}()
		v, err = fn(ctx)
	})
	return f
}

// Burst returns an Executor for a batch of about estimate tasks.
// When multicore is false the tasks run inline on the queuing goroutine.
func (p *Pool) Burst(estimate int, multicore bool) *Executor {
	if estimate < 0 {
		estimate = 0
	}
	return &Executor{
		pool:      p,
		multicore: multicore,
		futures:   make([]*Future[struct{}], 0, estimate),
	}
}

// Close stops the workers after queued tasks drain. It logs every close
// interval while waiting and cancels the task context once the close
// timeout passes. The pool restarts lazily on the next submission.
func (p *Pool) Close() error {
	p.mu.Lock()
	rt := p.rt.Load()
	p.mu.Unlock()

	if rt == nil || !rt.shutdown() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	deadline := time.Now().Add(p.closeTimeout)
	ticker := time.NewTicker(p.closeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			rt.cancel()
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				p.logger.Warn("forcing shutdown of burst pool", "pool", p.name)
				rt.cancel()
				return fmt.Errorf("%w: %s", ErrShutdownTimeout, p.name)
			}
			p.logger.Info("still waiting to shutdown burst pool", "pool", p.name)
		}
	}
}

// workers is one generation of started worker goroutines.
type workers struct {
	workCh   chan func(ctx context.Context)
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

func startWorkers(n int, logger *slog.Logger, name string) *workers {
	ctx, cancel := context.WithCancel(context.Background())
	w := &workers{
		workCh: make(chan func(ctx context.Context), n*2),
		ctx:    ctx,
		cancel: cancel,
	}

	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go w.work()
	}
	logger.Debug("burst pool started", "pool", name, "workers", n)
	return w
}

func (w *workers) work() {
	defer w.wg.Done()
	for fn := range w.workCh {
		fn(w.ctx)
	}
}

func (w *workers) submit(fn func(ctx context.Context)) bool {
	w.submitMu.RLock()
	defer w.submitMu.RUnlock()

	if w.closed.Load() {
		return false
	}
	w.workCh <- fn
	return true
}

func (w *workers) shutdown() bool {
	if !w.closed.CompareAndSwap(false, true) {
		return false
	}
	w.submitMu.Lock()
	close(w.workCh)
	w.submitMu.Unlock()
	return true
}
