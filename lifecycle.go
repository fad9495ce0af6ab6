package gridstore

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/shard"
)

// AdjustIdleDuration shortens base when more than limit shards are
// loaded: every percent over the limit takes 400ms off, down to MinIdle.
// At or under the limit base is returned unchanged.
func AdjustIdleDuration(base time.Duration, loaded, limit int) time.Duration {
	if limit <= 0 || loaded <= limit {
		return base
	}
	over := float64(loaded-limit) / float64(limit) * 100
	ms := float64(base.Milliseconds()) - 1000*over*0.4
	return max(time.Duration(ms*float64(time.Millisecond)), MinIdle)
}

// Trim marks every shard idle for longer than the adjusted idle duration
// for unload. It holds the whole trim gate while scanning.
func (s *Store[M]) Trim(ctx context.Context, baseIdle time.Duration, limit int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()

	idle := AdjustIdleDuration(baseIdle, s.LoadedShardCount(), limit)
	s.adjustedIdle.Store(int64(idle))

	if err := s.trimGate.Acquire(ctx, s.opts.gateCapacity); err != nil {
		return err
	}
	defer s.trimGate.Release(s.opts.gateCapacity)

	threshold := s.now() - idle.Milliseconds()

	s.mu.Lock()
	keys := make([]gridkey.Key, 0, len(s.lastUse))
	for k := range s.lastUse {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	marked := 0
	for _, k := range keys {
		s.locks.WithLock(k, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if used, ok := s.lastUse[k]; ok && used < threshold {
				s.pending.Add(k.Uint64())
				marked++
			}
		})
	}

	s.opts.logger.LogTrim(ctx, marked, idle)
	s.opts.metrics.RecordTrim(marked, time.Since(start))
	return nil
}

// TrimIdle is Trim without a shard count limit.
func (s *Store[M]) TrimIdle(ctx context.Context, baseIdle time.Duration) error {
	return s.Trim(ctx, baseIdle, math.MaxInt)
}

// Unload writes back and drops every shard marked by Trim that has stayed
// idle and unpinned. Shards found in use are touched and kept. It holds
// the whole unload gate and works in parallel when more than limit shards
// are pending. It returns the number of shards unloaded.
func (s *Store[M]) Unload(ctx context.Context, limit int) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	start := time.Now()

	if err := s.unloadGate.Acquire(ctx, s.opts.gateCapacity); err != nil {
		return 0, err
	}
	defer s.unloadGate.Release(s.opts.gateCapacity)

	since := s.now()

	s.mu.Lock()
	candidates := s.pending.ToArray()
	s.mu.Unlock()

	var unloaded atomic.Int64
	ex := s.pool.Burst(len(candidates), len(candidates) > limit)
	for _, v := range candidates {
		k := gridkey.FromUint64(v)
		ex.Queue(func(context.Context) error {
			if s.unloadCandidate(ctx, k, since) {
				unloaded.Add(1)
			}
			return nil
		})
	}
	err := ex.Complete()

	n := int(unloaded.Load())
	s.opts.metrics.RecordUnload(n, time.Since(start))
	return n, err
}

func (s *Store[M]) unloadCandidate(ctx context.Context, k gridkey.Key, since int64) bool {
	done := false
	s.locks.WithLock(k, func() {
		s.mu.Lock()
		sh, ok := s.loaded[k]
		if !ok {
			s.pending.Remove(k.Uint64())
			s.mu.Unlock()
			return
		}
		if !s.pending.Contains(k.Uint64()) || s.lastUse[k] >= since {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if sh.InUse() || !sh.TryClose() {
			s.touch(k)
			return
		}

		x, z := k.Decode()
		if err := s.io.Write(ctx, sh); err != nil {
			s.opts.logger.LogUnload(ctx, x, z, err)
			s.opts.onError(err)
			return
		}

		s.mu.Lock()
		s.forgetLocked(k)
		s.known.Add(k.Uint64())
		s.mu.Unlock()

		s.opts.logger.LogUnload(ctx, x, z, nil)
		done = true
	})
	return done
}

// forgetLocked drops k from every in-memory table. Callers hold s.mu.
func (s *Store[M]) forgetLocked(k gridkey.Key) {
	delete(s.loaded, k)
	delete(s.lastUse, k)
	s.pending.Remove(k.Uint64())
}

// SaveAll writes back and drops every loaded shard. The store stays
// usable. Shards pinned by a caller are left loaded and written later.
func (s *Store[M]) SaveAll(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.flush(ctx, func(sh *shard.Shard[M]) (bool, error) {
		k := sh.Key()
		var (
			saved bool
			err   error
		)
		s.locks.WithLock(k, func() {
			s.mu.Lock()
			current := s.loaded[k]
			s.mu.Unlock()
			if current != sh || !sh.TryClose() {
				return
			}
			if err = s.io.Write(ctx, sh); err != nil {
				return
			}
			s.mu.Lock()
			s.forgetLocked(k)
			s.known.Add(k.Uint64())
			s.mu.Unlock()
			saved = true
		})
		return saved, err
	})
}

// flush runs persist on every loaded shard in one burst and aggregates the
// failures.
func (s *Store[M]) flush(ctx context.Context, persist func(sh *shard.Shard[M]) (bool, error)) error {
	start := time.Now()

	s.mu.Lock()
	shards := make([]*shard.Shard[M], 0, len(s.loaded))
	for _, sh := range s.loaded {
		shards = append(shards, sh)
	}
	s.mu.Unlock()

	var (
		mu     sync.Mutex
		result *multierror.Error
		failed int
	)
	ex := s.pool.Burst(len(shards), len(shards) > 1)
	for _, sh := range shards {
		ex.Queue(func(context.Context) error {
			if _, err := persist(sh); err != nil {
				s.opts.logger.LogUnload(ctx, sh.X(), sh.Z(), err)
				s.opts.onError(err)
				mu.Lock()
				result = multierror.Append(result, err)
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = ex.Complete()

	s.opts.logger.LogFlush(ctx, len(shards), failed)
	s.opts.metrics.RecordFlush(len(shards), failed, time.Since(start))
	return result.ErrorOrNil()
}

// Clear drops every in-memory shard without writing it.
func (s *Store[M]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store[M]) clearLocked() {
	for _, sh := range s.loaded {
		sh.Clear()
	}
	clear(s.loaded)
	clear(s.lastUse)
	s.pending.Clear()
}

// Close writes back every loaded shard and releases the store. Accessors
// still retrying fail with ErrClosed. Calling Close again is a no-op.
func (s *Store[M]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx := context.Background()

	s.haltMaintenance()
	s.locks.Disable()

	var result *multierror.Error
	err := s.flush(ctx, func(sh *shard.Shard[M]) (bool, error) {
		sh.Close()
		if err := s.io.Write(ctx, sh); err != nil {
			return false, err
		}
		s.mu.Lock()
		s.known.Add(sh.Key().Uint64())
		s.mu.Unlock()
		return true, nil
	})
	if err != nil {
		result = multierror.Append(result, err)
	}

	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()

	if err := s.io.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.opts.lease != nil {
		if err := s.opts.lease.Release(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.ownsPool {
		if err := s.pool.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		s.opts.onError(err)
		return err
	}
	s.opts.logger.InfoContext(ctx, "store closed")
	return nil
}
