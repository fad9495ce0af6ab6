package shard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/varint"
)

const (
	// Side is the number of cells along one shard edge.
	Side = gridkey.ShardSize
	// Slots is the fixed number of cell slots per shard.
	Slots = Side * Side

	// Current is the format version written by WriteTo.
	Current = 1
	// Missing is the version assumed for streams without a version field.
	Missing = -1
)

// Index returns the slot index of local cell (x, z).
func Index(x, z int) int { return (z&(Side-1))*Side + (x & (Side - 1)) }

// Shard is a fixed 32x32 grid of lazily created cells.
type Shard[M any] struct {
	x, z     int32
	sections int
	adapter  Adapter[M]
	cells    [Slots]atomic.Pointer[Cell[M]]
	closed   atomic.Bool
}

// ValidateHeight checks that worldHeight is a positive multiple of
// SectionSize no taller than MaxWorldHeight.
func ValidateHeight(worldHeight int) error {
	if worldHeight < SectionSize || worldHeight > MaxWorldHeight || worldHeight%SectionSize != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHeight, worldHeight)
	}
	return nil
}

// New returns an empty shard at shard coordinates (x, z).
func New[M any](worldHeight int, x, z int32, adapter Adapter[M]) (*Shard[M], error) {
	if err := ValidateHeight(worldHeight); err != nil {
		return nil, err
	}
	return &Shard[M]{
		x:        x,
		z:        z,
		sections: worldHeight / SectionSize,
		adapter:  adapter,
	}, nil
}

// X returns the shard x coordinate.
func (s *Shard[M]) X() int32 { return s.x }

// Z returns the shard z coordinate.
func (s *Shard[M]) Z() int32 { return s.z }

// Key returns the packed shard coordinates.
func (s *Shard[M]) Key() gridkey.Key { return gridkey.Encode(s.x, s.z) }

// SectionCount returns the number of sections per cell.
func (s *Shard[M]) SectionCount() int { return s.sections }

// Cell returns the cell at local (x, z) if it exists.
func (s *Shard[M]) Cell(x, z int) (*Cell[M], bool) {
	c := s.cells[Index(x, z)].Load()
	return c, c != nil
}

// Exists reports whether local cell (x, z) exists.
func (s *Shard[M]) Exists(x, z int) bool { return s.cells[Index(x, z)].Load() != nil }

// Delete drops local cell (x, z).
func (s *Shard[M]) Delete(x, z int) { s.cells[Index(x, z)].Store(nil) }

// Clear drops every cell.
func (s *Shard[M]) Clear() {
	for i := range s.cells {
		s.cells[i].Store(nil)
	}
}

// GetOrCreate returns local cell (x, z), creating it if absent. Exactly one
// instance wins per slot; a caller losing the race gets the winner.
func (s *Shard[M]) GetOrCreate(x, z int) *Cell[M] {
	i := Index(x, z)
	if c := s.cells[i].Load(); c != nil {
		return c
	}
	created := NewCell(s.sections, x&(Side-1), z&(Side-1), s.adapter)
	if s.cells[i].CompareAndSwap(nil, created) {
		return created
	}
	return s.cells[i].Load()
}

// InUse reports whether any cell is pinned.
func (s *Shard[M]) InUse() bool {
	for i := range s.cells {
		if c := s.cells[i].Load(); c != nil && c.InUse() {
			return true
		}
	}
	return false
}

// Close marks the shard closed and closes every cell, waiting for pins to
// drain.
func (s *Shard[M]) Close() {
	s.closed.Store(true)
	for i := range s.cells {
		if c := s.cells[i].Load(); c != nil {
			c.Close()
		}
	}
}

// TryClose closes the shard only when no cell is pinned, without waiting.
// It reports whether the shard was closed.
func (s *Shard[M]) TryClose() bool {
	var seized []*Cell[M]
	for i := range s.cells {
		c := s.cells[i].Load()
		if c == nil {
			continue
		}
		if !c.seize() {
			for _, h := range seized {
				h.unseize(false)
			}
			return false
		}
		seized = append(seized, c)
	}
	s.closed.Store(true)
	for _, c := range seized {
		c.unseize(true)
	}
	return true
}

// Rehome returns a shard at (x, z) sharing s's cells. It is used when a
// persisted shard decodes with coordinates that disagree with its name.
func (s *Shard[M]) Rehome(x, z int32) *Shard[M] {
	out := &Shard[M]{x: x, z: z, sections: s.sections, adapter: s.adapter}
	for i := range s.cells {
		out.cells[i].Store(s.cells[i].Load())
	}
	return out
}

// Closed reports whether Close was called.
func (s *Shard[M]) Closed() bool { return s.closed.Load() }

// Len returns the number of occupied slots.
func (s *Shard[M]) Len() int {
	n := 0
	for i := range s.cells {
		if s.cells[i].Load() != nil {
			n++
		}
	}
	return n
}

// Each visits occupied slots in index order until fn returns false.
func (s *Shard[M]) Each(fn func(index int, c *Cell[M]) bool) {
	for i := range s.cells {
		if c := s.cells[i].Load(); c != nil {
			if !fn(i, c) {
				return
			}
		}
	}
}

// WriteTo serializes the shard as
// [x:i32][z:i32][version:varint] followed by Slots [len:i32][cell] records.
// Writing closes every cell.
func (s *Shard[M]) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	var hdr [8 + varint.MaxLen32]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(s.x))
	binary.BigEndian.PutUint32(hdr[4:], uint32(s.z))
	n := len(varint.AppendInt32(hdr[:8], Current))
	if _, err := cw.Write(hdr[:n]); err != nil {
		return cw.n, err
	}

	var (
		cellBuf bytes.Buffer
		scratch bytes.Buffer
		lenBuf  [4]byte
	)
	for i := range s.cells {
		c := s.cells[i].Load()
		if c == nil {
			binary.BigEndian.PutUint32(lenBuf[:], 0)
			if _, err := cw.Write(lenBuf[:]); err != nil {
				return cw.n, err
			}
			continue
		}

		cellBuf.Reset()
		if err := c.writeTo(&cellBuf, &scratch); err != nil {
			return cw.n, fmt.Errorf("write cell %d: %w", i, err)
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(cellBuf.Len()))
		if _, err := cw.Write(lenBuf[:]); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write(cellBuf.Bytes()); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
