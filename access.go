package gridstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/burst"
	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/internal/hyperlock"
	"github.com/hupe1980/gridstore/shard"
)

// touchLocked records a use of k and withdraws it from pending unload.
// Callers hold s.mu.
func (s *Store[M]) touchLocked(k gridkey.Key) {
	s.lastUse[k] = s.now()
	s.pending.Remove(k.Uint64())
}

func (s *Store[M]) touch(k gridkey.Key) {
	s.mu.Lock()
	s.touchLocked(k)
	s.mu.Unlock()
}

// loadedShard returns the open in-memory shard for k and touches it.
func (s *Store[M]) loadedShard(k gridkey.Key) (*shard.Shard[M], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.loaded[k]
	if !ok || sh.Closed() {
		return nil, false
	}
	s.touchLocked(k)
	return sh, true
}

// fastShard serves k from memory when neither trim nor unload holds the
// gates.
func (s *Store[M]) fastShard(k gridkey.Key) (*shard.Shard[M], bool) {
	if !s.trimGate.TryAcquire(1) {
		return nil, false
	}
	defer s.trimGate.Release(1)
	if !s.unloadGate.TryAcquire(1) {
		return nil, false
	}
	defer s.unloadGate.Release(1)
	return s.loadedShard(k)
}

// accessShard returns the shard at shard coordinates (x, z), loading or
// creating it. Failed loads are logged, reported and retried until one
// succeeds, ctx is done or the store closes.
func (s *Store[M]) accessShard(ctx context.Context, x, z int32) (*shard.Shard[M], error) {
	k := gridkey.Encode(x, z)
	for {
		if s.closed.Load() {
			return nil, ErrClosed
		}

		sh, err := s.tryAccess(ctx, k)
		if err == nil {
			return sh, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		s.opts.logger.WarnContext(ctx, "failed to access shard",
			"x", x,
			"z", z,
			"error", err,
		)
		s.opts.onError(err)
		s.opts.logger.WarnContext(ctx, "retrying shard access",
			"x", x,
			"z", z,
		)
	}
}

// tryAccess is one attempt of accessShard. Gate permits taken here are
// held until the load completes.
func (s *Store[M]) tryAccess(ctx context.Context, k gridkey.Key) (*shard.Shard[M], error) {
	trim := s.trimGate.TryAcquire(1)
	if trim {
		defer s.trimGate.Release(1)
	}
	unload := s.unloadGate.TryAcquire(1)
	if unload {
		defer s.unloadGate.Release(1)
	}

	if trim && unload {
		if sh, ok := s.loadedShard(k); ok {
			return sh, nil
		}
	}

	return burst.Submit(s.pool, func(ctx context.Context) (*shard.Shard[M], error) {
		return s.loadOrCreate(ctx, k)
	}).Get(ctx)
}

// accessShardAsync is accessShard that does not block. A shard already in
// memory is returned as a completed future.
func (s *Store[M]) accessShardAsync(ctx context.Context, x, z int32) *burst.Future[*shard.Shard[M]] {
	if s.closed.Load() {
		return burst.Failed[*shard.Shard[M]](ErrClosed)
	}
	if sh, ok := s.fastShard(gridkey.Encode(x, z)); ok {
		return burst.Completed(sh)
	}
	return burst.Async(func() (*shard.Shard[M], error) {
		return s.accessShard(ctx, x, z)
	})
}

// loadOrCreate brings k into memory under its shard lock. A persisted
// shard that cannot be read is replaced by an empty one.
func (s *Store[M]) loadOrCreate(ctx context.Context, k gridkey.Key) (*shard.Shard[M], error) {
	return hyperlock.WithResult(s.locks, k, func() (*shard.Shard[M], error) {
		if s.closed.Load() {
			return nil, ErrClosed
		}

		s.mu.Lock()
		s.touchLocked(k)
		sh, ok := s.loaded[k]
		s.mu.Unlock()

		if ok {
			if !sh.Closed() {
				return sh, nil
			}
			// A previous write failed after the shard was closed.
			if err := s.io.Write(ctx, sh); err != nil {
				return nil, fmt.Errorf("rewrite shard %d,%d: %w", k.X(), k.Z(), err)
			}
			s.mu.Lock()
			delete(s.loaded, k)
			s.known.Add(k.Uint64())
			s.mu.Unlock()
		}

		start := time.Now()
		sh, created, err := s.readOrCreate(ctx, k)
		s.opts.metrics.RecordLoad(time.Since(start), created, err)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.loaded[k] = sh
		s.touchLocked(k)
		s.mu.Unlock()
		return sh, nil
	})
}

func (s *Store[M]) readOrCreate(ctx context.Context, k gridkey.Key) (*shard.Shard[M], bool, error) {
	x, z := k.Decode()

	s.mu.Lock()
	known := s.known.Contains(k.Uint64())
	s.mu.Unlock()

	if known {
		sh, corrupt, err := s.io.ReadChecked(ctx, k)
		switch {
		case err == nil:
			if corrupt {
				s.opts.logger.WarnContext(ctx, "shard loaded with corrupt cells", "x", x, "z", z)
			}
			if sh.X() != x || sh.Z() != z {
				s.opts.logger.WarnContext(ctx, "shard coordinates mismatch",
					"x", x,
					"z", z,
					"stored_x", sh.X(),
					"stored_z", sh.Z(),
				)
				sh = sh.Rehome(x, z)
			}
			s.opts.logger.LogLoad(ctx, x, z, false, nil)
			return sh, false, nil
		case ctx.Err() != nil:
			return nil, false, ctx.Err()
		case !errors.Is(err, blobstore.ErrNotFound):
			s.opts.logger.LogLoad(ctx, x, z, true, err)
			s.opts.onError(err)
		}
	}

	sh, err := shard.New(s.opts.worldHeight, x, z, s.adapter)
	if err != nil {
		return nil, false, err
	}
	if !known {
		s.opts.logger.LogLoad(ctx, x, z, true, nil)
	}
	return sh, true, nil
}

// withCell pins the cell at cell coordinates (cx, cz) while fn runs. When
// create is false and the cell does not exist, fn is not called. A cell
// closed by a concurrent unload is looked up again after the reload.
func (s *Store[M]) withCell(ctx context.Context, cx, cz int32, create bool, fn func(c *shard.Cell[M]) error) error {
	lx, lz := gridkey.CellLocal(cx), gridkey.CellLocal(cz)
	for {
		sh, err := s.accessShard(ctx, gridkey.CellToShard(cx), gridkey.CellToShard(cz))
		if err != nil {
			return err
		}

		var c *shard.Cell[M]
		if create {
			c = sh.GetOrCreate(lx, lz)
		} else if c, _ = sh.Cell(lx, lz); c == nil {
			return nil
		}

		if err := c.Use(); err != nil {
			if errors.Is(err, shard.ErrCellClosed) {
				continue
			}
			return err
		}
		if sh.Closed() {
			c.Release()
			continue
		}

		err = fn(c)
		c.Release()
		return err
	}
}
