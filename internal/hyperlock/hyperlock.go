// Package hyperlock provides a bounded cache of per-key mutual exclusion
// locks for packed shard keys.
//
// Locks are created on first use and tracked in an LRU of fixed capacity.
// A lock evicted while held is logged and kept aside until it is released,
// so two goroutines never hold the same key at once. Locks are not reentrant.
package hyperlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hupe1980/gridstore/gridkey"
)

const (
	// DefaultWaitSlice is how long Lock waits before logging and waiting again.
	DefaultWaitSlice = 5 * time.Second
	// DefaultSlowThreshold is the wait after which an acquisition is logged.
	DefaultSlowThreshold = time.Second
)

// ErrInvalidCapacity is returned by New for a non-positive capacity.
var ErrInvalidCapacity = errors.New("hyperlock: capacity must be positive")

// Option configures a Lock.
type Option func(*Lock)

// WithLogger sets the logger used for wait and eviction warnings.
func WithLogger(l *slog.Logger) Option {
	return func(h *Lock) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithErrorHandler sets the callback for interrupted waits.
func WithErrorHandler(fn func(error)) Option {
	return func(h *Lock) {
		if fn != nil {
			h.onError = fn
		}
	}
}

// WithWaitSlice overrides DefaultWaitSlice.
func WithWaitSlice(d time.Duration) Option {
	return func(h *Lock) {
		if d > 0 {
			h.waitSlice = d
		}
	}
}

// WithSlowThreshold overrides DefaultSlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(h *Lock) {
		if d > 0 {
			h.slowThreshold = d
		}
	}
}

// Lock is the keyed lock cache.
type Lock struct {
	mu    sync.Mutex
	cache *lru.Cache
	// held tracks entries evicted from cache while locked.
	held map[gridkey.Key]*entry

	enabled       atomic.Bool
	logger        *slog.Logger
	onError       func(error)
	waitSlice     time.Duration
	slowThreshold time.Duration
}

type entry struct {
	key        gridkey.Key
	token      chan struct{}
	acquiredAt atomic.Int64
	orphan     atomic.Bool
	sealed     atomic.Bool
}

func (e *entry) locked() bool { return len(e.token) == 1 }

func (e *entry) heldFor() time.Duration {
	at := e.acquiredAt.Load()
	if at == 0 {
		return 0
	}
	return time.Since(time.Unix(0, at))
}

// New creates a Lock tracking at most capacity keys.
func New(capacity int, opts ...Option) (*Lock, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	h := &Lock{
		held:          make(map[gridkey.Key]*entry),
		logger:        slog.New(slog.DiscardHandler),
		onError:       func(error) {},
		waitSlice:     DefaultWaitSlice,
		slowThreshold: DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(h)
	}

	cache, err := lru.NewWithEvict(capacity, h.onEvict)
	if err != nil {
		return nil, fmt.Errorf("hyperlock: %w", err)
	}
	h.cache = cache
	h.enabled.Store(true)
	return h, nil
}

// onEvict runs with h.mu held (evictions only happen inside entry).
func (h *Lock) onEvict(key, value any) {
	e := value.(*entry)
	if !e.locked() {
		return
	}
	h.logger.Warn("evicting held shard lock",
		"x", e.key.X(),
		"z", e.key.Z(),
		"heldFor", e.heldFor(),
	)
	e.orphan.Store(true)
	h.held[e.key] = e
}

func (h *Lock) entry(key gridkey.Key) *entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.held[key]; ok {
		return e
	}
	if v, ok := h.cache.Get(key); ok {
		return v.(*entry)
	}
	e := &entry{key: key, token: make(chan struct{}, 1)}
	h.cache.Add(key, e)
	return e
}

func (h *Lock) lookup(key gridkey.Key) *entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.held[key]; ok {
		return e
	}
	if v, ok := h.cache.Peek(key); ok {
		return v.(*entry)
	}
	return nil
}

// Enabled reports whether locking is active.
func (h *Lock) Enabled() bool { return h.enabled.Load() }

// Len returns the number of tracked locks.
func (h *Lock) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache.Len() + len(h.held)
}

// Lock blocks until key is held by the caller. It waits in slices, logging
// a warning after each one. It returns false without locking when the Lock
// is disabled, before or during the wait.
func (h *Lock) Lock(key gridkey.Key) bool {
	_, ok := h.lock(key)
	return ok
}

func (h *Lock) lock(key gridkey.Key) (*entry, bool) {
	if !h.enabled.Load() {
		return nil, false
	}
	e := h.entry(key)

	select {
	case e.token <- struct{}{}:
		e.acquiredAt.Store(time.Now().UnixNano())
		return e, true
	default:
	}

	start := time.Now()
	timer := time.NewTimer(h.waitSlice)
	defer timer.Stop()

	for h.enabled.Load() {
		select {
		case e.token <- struct{}{}:
			e.acquiredAt.Store(time.Now().UnixNano())
			if waited := time.Since(start); waited >= h.slowThreshold {
				h.logger.Warn("shard lock acquired after wait",
					"x", key.X(),
					"z", key.Z(),
					"waited", waited,
				)
			}
			return e, true
		case <-timer.C:
			h.logger.Warn("shard lock wait",
				"x", key.X(),
				"z", key.Z(),
				"waited", time.Since(start),
				"heldFor", e.heldFor(),
			)
			timer.Reset(h.waitSlice)
		}
	}
	return nil, false
}

// TryLock attempts to lock key within timeout. Cancellation of ctx is
// reported to the error handler and yields false. A disabled Lock always
// succeeds without locking.
func (h *Lock) TryLock(ctx context.Context, key gridkey.Key, timeout time.Duration) bool {
	if !h.enabled.Load() {
		return true
	}
	e := h.entry(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.token <- struct{}{}:
		e.acquiredAt.Store(time.Now().UnixNano())
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		h.onError(fmt.Errorf("hyperlock: wait for shard %d,%d interrupted: %w", key.X(), key.Z(), ctx.Err()))
		return false
	}
}

// Unlock releases key. Only callers whose Lock or TryLock acquired the key
// may call it.
func (h *Lock) Unlock(key gridkey.Key) {
	e := h.lookup(key)
	if e == nil {
		if h.enabled.Load() {
			h.logger.Warn("unlock of untracked shard lock", "x", key.X(), "z", key.Z())
		}
		return
	}
	if e.sealed.Load() {
		return
	}
	h.release(e)
}

func (h *Lock) release(e *entry) {
	e.acquiredAt.Store(0)
	select {
	case <-e.token:
	default:
		h.logger.Warn("unlock of unheld shard lock", "x", e.key.X(), "z", e.key.Z())
	}

	if e.orphan.Load() {
		h.mu.Lock()
		if h.held[e.key] == e {
			delete(h.held, e.key)
		}
		h.mu.Unlock()
	}
}

// WithLock runs fn while holding key.
func (h *Lock) WithLock(key gridkey.Key, fn func()) {
	if e, ok := h.lock(key); ok {
		defer h.release(e)
	}
	fn()
}

// WithResult runs fn while holding key and returns its result.
func WithResult[T any](h *Lock, key gridkey.Key, fn func() (T, error)) (T, error) {
	if e, ok := h.lock(key); ok {
		defer h.release(e)
	}
	return fn()
}

// Disable turns every later Lock into a no-op, then acquires every tracked
// lock once so that current holders have finished when it returns. The
// acquired locks are never released.
func (h *Lock) Disable() {
	if !h.enabled.CompareAndSwap(true, false) {
		return
	}

	h.mu.Lock()
	entries := make([]*entry, 0, h.cache.Len()+len(h.held))
	for _, k := range h.cache.Keys() {
		if v, ok := h.cache.Peek(k); ok {
			entries = append(entries, v.(*entry))
		}
	}
	for _, e := range h.held {
		entries = append(entries, e)
	}
	h.mu.Unlock()

	for _, e := range entries {
		e.token <- struct{}{}
		e.sealed.Store(true)
	}
}
