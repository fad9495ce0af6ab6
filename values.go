package gridstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/shard"
)

func (s *Store[M]) inHeight(y int) bool { return y >= 0 && y < s.opts.worldHeight }

func (s *Store[M]) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// hasShardOfCell reports whether the shard holding cell (cx, cz) is
// loaded or persisted, without loading it.
func (s *Store[M]) hasShardOfCell(cx, cz int32) bool {
	return s.HasShard(gridkey.CellToShard(cx), gridkey.CellToShard(cz))
}

// Set stores value at block (x, y, z). Heights outside the world are
// ignored. A value whose type the adapter cannot classify fails with
// ErrInvalidArgument.
func (s *Store[M]) Set(ctx context.Context, x, y, z int, value any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.inHeight(y) {
		return nil
	}
	if s.adapter.Classify(value) == nil {
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, value)
	}
	return s.withCell(ctx, gridkey.BlockToCell(x), gridkey.BlockToCell(z), true, func(c *shard.Cell[M]) error {
		c.Set(gridkey.BlockLocal(x), y, gridkey.BlockLocal(z), value)
		return nil
	})
}

// Get returns the value of type T at block (x, y, z). It reports false
// when the height is outside the world, the shard was never created or no
// value is stored. Reading never creates shards or cells.
func Get[T, M any](ctx context.Context, s *Store[M], x, y, z int) (T, bool, error) {
	var (
		out   T
		found bool
	)
	if err := s.checkOpen(); err != nil {
		return out, false, err
	}
	if !s.inHeight(y) {
		return out, false, nil
	}
	cx, cz := gridkey.BlockToCell(x), gridkey.BlockToCell(z)
	if !s.hasShardOfCell(cx, cz) {
		return out, false, nil
	}

	kind := reflect.TypeFor[T]()
	err := s.withCell(ctx, cx, cz, false, func(c *shard.Cell[M]) error {
		v, ok := c.Get(gridkey.BlockLocal(x), y, gridkey.BlockLocal(z), kind)
		if !ok {
			return nil
		}
		out, found = v.(T)
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return out, found, nil
}

// Remove deletes the value of type T at block (x, y, z).
func Remove[T, M any](ctx context.Context, s *Store[M], x, y, z int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.inHeight(y) {
		return nil
	}
	cx, cz := gridkey.BlockToCell(x), gridkey.BlockToCell(z)
	if !s.hasShardOfCell(cx, cz) {
		return nil
	}

	kind := reflect.TypeFor[T]()
	return s.withCell(ctx, cx, cz, false, func(c *shard.Cell[M]) error {
		c.Remove(gridkey.BlockLocal(x), y, gridkey.BlockLocal(z), kind)
		return nil
	})
}

// IterateCell visits every value of type T in cell (cx, cz) until fn
// returns false. x and z are local to the cell, y is the block height.
func IterateCell[T, M any](ctx context.Context, s *Store[M], cx, cz int32, fn func(x, y, z int, value T) bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.hasShardOfCell(cx, cz) {
		return nil
	}
	kind := reflect.TypeFor[T]()
	return s.withCell(ctx, cx, cz, false, func(c *shard.Cell[M]) error {
		c.Iterate(kind, func(x, y, z int, v any) bool {
			t, ok := v.(T)
			if !ok {
				return true
			}
			return fn(x, y, z, t)
		})
		return nil
	})
}

// DeleteCellSlice drops every value of type T in cell (cx, cz) unless the
// retain policy set by WithRetainSlice keeps T.
func DeleteCellSlice[T, M any](ctx context.Context, s *Store[M], cx, cz int32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	kind := reflect.TypeFor[T]()
	if s.opts.retainSlice != nil && s.opts.retainSlice(kind) {
		return nil
	}
	if !s.hasShardOfCell(cx, cz) {
		return nil
	}
	return s.withCell(ctx, cx, cz, false, func(c *shard.Cell[M]) error {
		c.DeleteSlices(kind)
		return nil
	})
}

// GetCell returns cell (cx, cz), creating it and its shard if needed. The
// cell is not pinned; see Cell.Use.
func (s *Store[M]) GetCell(ctx context.Context, cx, cz int32) (*shard.Cell[M], error) {
	sh, err := s.accessShard(ctx, gridkey.CellToShard(cx), gridkey.CellToShard(cz))
	if err != nil {
		return nil, err
	}
	return sh.GetOrCreate(gridkey.CellLocal(cx), gridkey.CellLocal(cz)), nil
}

// DeleteCell empties the slot of cell (cx, cz). The shard itself stays.
func (s *Store[M]) DeleteCell(ctx context.Context, cx, cz int32) error {
	sh, err := s.accessShard(ctx, gridkey.CellToShard(cx), gridkey.CellToShard(cz))
	if err != nil {
		return err
	}
	sh.Delete(gridkey.CellLocal(cx), gridkey.CellLocal(cz))
	return nil
}

// IsCellLoaded reports whether the shard holding cell (cx, cz) is in
// memory. It never loads.
func (s *Store[M]) IsCellLoaded(cx, cz int32) bool {
	k := gridkey.ShardOfCell(cx, cz)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loaded[k]
	return ok
}

// HasShard reports whether the shard at shard coordinates (x, z) is loaded
// or persisted. It never loads.
func (s *Store[M]) HasShard(x, z int32) bool {
	k := gridkey.Encode(x, z)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loaded[k]; ok {
		return true
	}
	return s.known.Contains(k.Uint64())
}

// Flag sets or clears f on cell (cx, cz).
func (s *Store[M]) Flag(ctx context.Context, cx, cz int32, f shard.Flag, on bool) error {
	return s.withCell(ctx, cx, cz, true, func(c *shard.Cell[M]) error {
		c.SetFlag(f, on)
		return nil
	})
}

// HasFlag reports whether f is set on cell (cx, cz). It is false without
// loading when the shard does not exist.
func (s *Store[M]) HasFlag(ctx context.Context, cx, cz int32, f shard.Flag) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if !s.hasShardOfCell(cx, cz) {
		return false, nil
	}
	set := false
	err := s.withCell(ctx, cx, cz, false, func(c *shard.Cell[M]) error {
		set = c.IsFlagged(f)
		return nil
	})
	return set, err
}

// RaiseFlag sets f on cell (cx, cz) and, if it was clear, runs fn once
// the cell is unpinned. Concurrent raisers run fn exactly once.
func (s *Store[M]) RaiseFlag(ctx context.Context, cx, cz int32, f shard.Flag, fn func()) error {
	raised := false
	err := s.withCell(ctx, cx, cz, true, func(c *shard.Cell[M]) error {
		raised = c.Raise(f)
		return nil
	})
	if err == nil && raised && fn != nil {
		fn()
	}
	return err
}

// LowerFlag clears f on cell (cx, cz) and, if it was set, runs fn.
func (s *Store[M]) LowerFlag(ctx context.Context, cx, cz int32, f shard.Flag, fn func()) error {
	lowered := false
	err := s.withCell(ctx, cx, cz, true, func(c *shard.Cell[M]) error {
		lowered = c.Lower(f)
		return nil
	})
	if err == nil && lowered && fn != nil {
		fn()
	}
	return err
}
