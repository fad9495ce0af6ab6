package gridstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gridstore/burst"
	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/shard"
	"golang.org/x/sync/semaphore"
)

// CellVisitor receives a cell by its cell coordinates.
type CellVisitor[M any] func(cx, cz int32, c *shard.Cell[M]) error

type cellRange struct {
	minX, maxX, minZ, maxZ int32
}

// ForEachCell calls fn for every cell in the inclusive rectangle
// [minX, maxX] x [minZ, maxZ], creating missing cells. Cells of one shard
// are visited x-major while slot (0, 0) of that shard is pinned, so the
// shard cannot be unloaded mid-visit.
//
// With parallelism above 1, up to parallelism shards are visited at once
// and the first error stops new work. fn must be safe for concurrent use
// then. fn must not call SaveAll.
func (s *Store[M]) ForEachCell(ctx context.Context, minX, maxX, minZ, maxZ int32, parallelism int, fn CellVisitor[M]) error {
	if minX > maxX || minZ > maxZ {
		return ErrOutOfBounds
	}
	if s.closed.Load() {
		return ErrClosed
	}
	r := cellRange{minX: minX, maxX: maxX, minZ: minZ, maxZ: maxZ}

	minSX, maxSX := gridkey.CellToShard(minX), gridkey.CellToShard(maxX)
	minSZ, maxSZ := gridkey.CellToShard(minZ), gridkey.CellToShard(maxZ)

	if parallelism <= 1 {
		for sx := minSX; sx <= maxSX; sx++ {
			for sz := minSZ; sz <= maxSZ; sz++ {
				if err := s.visitShard(ctx, sx, sz, nil, r, fn); err != nil {
					return err
				}
			}
		}
		return nil
	}

	var (
		sem       = semaphore.NewWeighted(int64(parallelism))
		queued    atomic.Int64
		completed atomic.Int64
		errOnce   sync.Once
		firstErr  error
		failed    atomic.Bool
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			failed.Store(true)
		})
	}

queue:
	for sx := minSX; sx <= maxSX; sx++ {
		for sz := minSZ; sz <= maxSZ; sz++ {
			if failed.Load() {
				break queue
			}
			if err := s.acquireVisit(ctx, sem, 1, parallelism, &queued, &completed); err != nil {
				fail(err)
				break queue
			}
			queued.Add(1)

			f := s.accessShardAsync(ctx, sx, sz)
			go func() {
				defer sem.Release(1)
				defer completed.Add(1)
				if failed.Load() {
					return
				}
				if err := s.visitShard(ctx, sx, sz, f, r, fn); err != nil {
					fail(err)
				}
			}()
		}
	}

	// Wait for in-flight shards by taking every permit.
	if err := s.acquireVisit(context.WithoutCancel(ctx), sem, int64(parallelism), parallelism, &queued, &completed); err == nil {
		sem.Release(int64(parallelism))
	}
	return firstErr
}

// acquireVisit takes n permits, logging every stall interval while the
// parallelism bound stays saturated.
func (s *Store[M]) acquireVisit(ctx context.Context, sem *semaphore.Weighted, n int64, parallelism int, queued, completed *atomic.Int64) error {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, stallInterval)
		err := sem.Acquire(waitCtx, n)
		cancel()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.opts.logger.WarnContext(ctx, "shard iteration stalled",
			"queued", queued.Load(),
			"completed", completed.Load(),
			"parallelism", parallelism,
		)
	}
}

// visitShard walks the part of r inside shard (sx, sz). f, when not nil,
// is the pending access of that shard.
func (s *Store[M]) visitShard(ctx context.Context, sx, sz int32, f *burst.Future[*shard.Shard[M]], r cellRange, fn CellVisitor[M]) error {
	for {
		var (
			sh  *shard.Shard[M]
			err error
		)
		if f != nil {
			sh, err = f.Get(ctx)
			f = nil
		} else {
			sh, err = s.accessShard(ctx, sx, sz)
		}
		if err != nil {
			return err
		}

		anchor := sh.GetOrCreate(0, 0)
		if err := anchor.Use(); err != nil {
			if errors.Is(err, shard.ErrCellClosed) {
				continue
			}
			return err
		}
		if sh.Closed() {
			anchor.Release()
			continue
		}

		err = walkShard(sh, sx, sz, r, fn)
		anchor.Release()
		return err
	}
}

func walkShard[M any](sh *shard.Shard[M], sx, sz int32, r cellRange, fn CellVisitor[M]) error {
	baseX, baseZ := sx<<gridkey.ShardShift, sz<<gridkey.ShardShift
	fromX, toX := max(r.minX, baseX), min(r.maxX, baseX+shard.Side-1)
	fromZ, toZ := max(r.minZ, baseZ), min(r.maxZ, baseZ+shard.Side-1)

	for cx := fromX; cx <= toX; cx++ {
		for cz := fromZ; cz <= toZ; cz++ {
			c := sh.GetOrCreate(int(cx-baseX), int(cz-baseZ))
			if err := fn(cx, cz, c); err != nil {
				return err
			}
		}
	}
	return nil
}
