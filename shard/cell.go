package shard

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"sync/atomic"

	"github.com/hupe1980/gridstore/varint"
	"golang.org/x/sync/semaphore"
)

// SectionSize is the edge length of a section in blocks.
const SectionSize = 16

// MaxWorldHeight is the tallest supported column (255 sections).
const MaxWorldHeight = 255 * SectionSize

// maxUsers bounds concurrent Use calls; Close acquires all of them.
const maxUsers = math.MaxInt32

// Flag is a boolean cell attribute, 0 through 63.
type Flag uint8

// Cell is a 16 block wide column of sections inside a shard.
//
// Callers pin a cell with Use and unpin it with Release. Close waits for all
// pins to drain and makes later Use calls fail.
type Cell[M any] struct {
	x, z     uint8
	adapter  Adapter[M]
	sections []atomic.Pointer[M]
	flags    atomic.Uint64

	ref    *semaphore.Weighted
	users  atomic.Int64
	closed atomic.Bool
}

// NewCell returns an empty cell with the given section count at local
// position (x, z) of its shard.
func NewCell[M any](sections, x, z int, adapter Adapter[M]) *Cell[M] {
	return &Cell[M]{
		x:        uint8(x),
		z:        uint8(z),
		adapter:  adapter,
		sections: make([]atomic.Pointer[M], sections),
		ref:      semaphore.NewWeighted(maxUsers),
	}
}

// X returns the local x position inside the shard.
func (c *Cell[M]) X() int { return int(c.x) }

// Z returns the local z position inside the shard.
func (c *Cell[M]) Z() int { return int(c.z) }

// SectionCount returns the number of section slots.
func (c *Cell[M]) SectionCount() int { return len(c.sections) }

// Use pins the cell. It fails with ErrCellClosed once Close has started.
func (c *Cell[M]) Use() error {
	if c.closed.Load() {
		return ErrCellClosed
	}
	if err := c.ref.Acquire(context.Background(), 1); err != nil {
		return err
	}
	if c.closed.Load() {
		c.ref.Release(1)
		return ErrCellClosed
	}
	c.users.Add(1)
	return nil
}

// Release unpins the cell.
func (c *Cell[M]) Release() {
	c.users.Add(-1)
	c.ref.Release(1)
}

// InUse reports whether any caller holds a pin.
func (c *Cell[M]) InUse() bool { return c.users.Load() > 0 }

// Close marks the cell closed and waits until every pin is released.
func (c *Cell[M]) Close() {
	c.closed.Store(true)
	_ = c.ref.Acquire(context.Background(), maxUsers)
	c.ref.Release(maxUsers)
}

// Closed reports whether Close was called.
func (c *Cell[M]) Closed() bool { return c.closed.Load() }

// seize takes the whole pin budget if nobody holds or waits for a pin.
func (c *Cell[M]) seize() bool { return c.ref.TryAcquire(maxUsers) }

// unseize returns the budget taken by seize, closing the cell first when
// closing is set.
func (c *Cell[M]) unseize(closing bool) {
	if closing {
		c.closed.Store(true)
	}
	c.ref.Release(maxUsers)
}

// Section returns section i if it exists.
func (c *Cell[M]) Section(i int) (M, bool) {
	if p := c.sections[i].Load(); p != nil {
		return *p, true
	}
	var zero M
	return zero, false
}

// Exists reports whether section i exists.
func (c *Cell[M]) Exists(i int) bool { return c.sections[i].Load() != nil }

// GetOrCreate returns section i, creating it if absent. Concurrent callers
// observe the same section.
func (c *Cell[M]) GetOrCreate(i int) M {
	if p := c.sections[i].Load(); p != nil {
		return *p
	}
	created := c.adapter.NewSection()
	if c.sections[i].CompareAndSwap(nil, &created) {
		return created
	}
	return *c.sections[i].Load()
}

// Delete drops section i.
func (c *Cell[M]) Delete(i int) { c.sections[i].Store(nil) }

// Clear drops every section.
func (c *Cell[M]) Clear() {
	for i := range c.sections {
		c.sections[i].Store(nil)
	}
}

// Get returns the value of kind at local block (x, y, z); y is the column
// height, not the section-relative one.
func (c *Cell[M]) Get(x, y, z int, kind reflect.Type) (any, bool) {
	s, ok := c.Section(y >> 4)
	if !ok {
		return nil, false
	}
	return c.adapter.Get(s, x&15, y&15, z&15, kind)
}

// Set stores value at local block (x, y, z). It reports false when the
// adapter cannot classify value.
func (c *Cell[M]) Set(x, y, z int, value any) bool {
	kind := c.adapter.Classify(value)
	if kind == nil {
		return false
	}
	s := c.GetOrCreate(y >> 4)
	c.adapter.Set(s, x&15, y&15, z&15, kind, value)
	return true
}

// Remove deletes the value of kind at local block (x, y, z).
func (c *Cell[M]) Remove(x, y, z int, kind reflect.Type) {
	if s, ok := c.Section(y >> 4); ok {
		c.adapter.Remove(s, x&15, y&15, z&15, kind)
	}
}

// Iterate visits every value of kind with column heights, until fn
// returns false.
func (c *Cell[M]) Iterate(kind reflect.Type, fn func(x, y, z int, value any) bool) {
	for i := range c.sections {
		s, ok := c.Section(i)
		if !ok {
			continue
		}
		base := i << 4
		stopped := false
		c.adapter.Iterate(s, kind, func(x, y, z int, v any) bool {
			if !fn(x, y+base, z, v) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

// DeleteSlices drops all values of kind.
func (c *Cell[M]) DeleteSlices(kind reflect.Type) {
	for i := range c.sections {
		if s, ok := c.Section(i); ok && c.adapter.HasSlice(s, kind) {
			c.adapter.DeleteSlice(s, kind)
		}
	}
}

// TrimSlices trims every section and drops the empty ones.
func (c *Cell[M]) TrimSlices() {
	for i := range c.sections {
		c.trimIndex(i)
	}
}

func (c *Cell[M]) trimIndex(i int) {
	s, ok := c.Section(i)
	if !ok {
		return
	}
	if c.adapter.IsSectionEmpty(s) {
		c.sections[i].Store(nil)
		return
	}
	c.adapter.TrimSection(s)
	if c.adapter.IsSectionEmpty(s) {
		c.sections[i].Store(nil)
	}
}

// CopyFrom replaces sections and flags with those of other.
func (c *Cell[M]) CopyFrom(other *Cell[M]) error {
	if err := c.Use(); err != nil {
		return err
	}
	defer c.Release()

	c.flags.Store(other.flags.Load())
	for i := range c.sections {
		if i < len(other.sections) {
			c.sections[i].Store(other.sections[i].Load())
		} else {
			c.sections[i].Store(nil)
		}
	}
	return nil
}

// IsFlagged reports whether f is set.
func (c *Cell[M]) IsFlagged(f Flag) bool { return c.flags.Load()&(1<<f) != 0 }

// SetFlag sets or clears f.
func (c *Cell[M]) SetFlag(f Flag, on bool) {
	if on {
		c.flags.Or(1 << f)
	} else {
		c.flags.And(^(uint64(1) << f))
	}
}

// Raise sets f and reports whether it was previously clear.
func (c *Cell[M]) Raise(f Flag) bool { return c.flags.Or(1<<f)&(1<<f) == 0 }

// Lower clears f and reports whether it was previously set.
func (c *Cell[M]) Lower(f Flag) bool { return c.flags.And(^(uint64(1)<<f))&(1<<f) != 0 }

// Flags returns the raw flag bits.
func (c *Cell[M]) Flags() uint64 { return c.flags.Load() }

// writeTo closes the cell, trims it and writes
// [x:u8][z:u8][sections:u8][flags:uvarint] then one [len:i32][bytes]
// record per section, len 0 marking an absent section.
func (c *Cell[M]) writeTo(w io.Writer, scratch *bytes.Buffer) error {
	c.Close()

	hdr := []byte{c.x, c.z, uint8(len(c.sections))}
	hdr = varint.AppendUint64(hdr, c.flags.Load())
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	var lenBuf [4]byte
	for i := range c.sections {
		c.trimIndex(i)
		s, ok := c.Section(i)
		if !ok {
			binary.BigEndian.PutUint32(lenBuf[:], 0)
			if _, err := w.Write(lenBuf[:]); err != nil {
				return err
			}
			continue
		}

		scratch.Reset()
		if err := c.adapter.WriteSection(scratch, s); err != nil {
			return fmt.Errorf("write section %d: %w", i, err)
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(scratch.Len()))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(scratch.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func readCell[M any](data []byte, version, sections int, adapter Adapter[M], hooks Hooks) (*Cell[M], error) {
	r := bytes.NewReader(data)

	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: cell header: %v", ErrCorrupt, err)
	}
	c := NewCell(sections, int(hdr[0]), int(hdr[1]), adapter)

	if version >= 1 {
		flags, err := varint.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("%w: cell flags: %v", ErrCorrupt, err)
		}
		c.flags.Store(flags)
	}

	count := int(hdr[2])
	for i := 0; i < count; i++ {
		hooks.beforeReadSection(i)

		size, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d length: %v", ErrCorrupt, i, err)
		}
		if size == 0 {
			continue
		}
		if size < 0 || int(size) > r.Len() {
			return nil, fmt.Errorf("%w: section %d length %d", ErrCorrupt, i, size)
		}

		buf := make([]byte, size)
		_, _ = io.ReadFull(r, buf)
		if i >= sections {
			continue
		}

		s, err := adapter.ReadSection(buf)
		if err != nil {
			hooks.readSectionFailure(i, err)
			continue
		}
		c.sections[i].Store(&s)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing cell bytes", ErrCorrupt, r.Len())
	}
	return c, nil
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}
