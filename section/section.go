package section

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/gridstore/shard"
	"github.com/hupe1980/gridstore/varint"
)

// Volume is the number of block positions in one section.
const Volume = 16 * 16 * 16

// Section is a sparse 16x16x16 volume of typed values. Values are grouped
// into one slice per Go type.
type Section struct {
	mu     sync.RWMutex
	slices map[reflect.Type]map[uint16]any
}

func newSection() *Section {
	return &Section{slices: make(map[reflect.Type]map[uint16]any)}
}

// Index packs a position inside a section.
func Index(x, y, z int) uint16 { return uint16((y&15)<<8 | (z&15)<<4 | x&15) }

// Position unpacks Index.
func Position(i uint16) (x, y, z int) { return int(i & 15), int(i >> 8 & 15), int(i >> 4 & 15) }

// Len returns the number of values of kind.
func (s *Section) Len(kind reflect.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slices[kind])
}

// Kinds returns the kinds present in the section.
func (s *Section) Kinds() []reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Keys(s.slices))
}

// Adapter stores Section payloads in shard cells.
type Adapter struct {
	reg *Registry
}

var _ shard.Adapter[*Section] = (*Adapter)(nil)

// NewAdapter returns an adapter over reg. A nil reg uses NewRegistry.
func NewAdapter(reg *Registry) *Adapter {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Adapter{reg: reg}
}

// Registry returns the adapter's value registry.
func (a *Adapter) Registry() *Registry { return a.reg }

func (a *Adapter) NewSection() *Section { return newSection() }

// ReadSection decodes
// [slices:uvarint] then per slice [name][count:uvarint] and count
// [index:u16][value] entries.
func (a *Adapter) ReadSection(data []byte) (*Section, error) {
	r := bytes.NewReader(data)
	n, err := varint.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("section: slice count: %w", err)
	}

	s := newSection()
	for i := uint32(0); i < n; i++ {
		name, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("section: slice name: %w", err)
		}
		c, ok := a.reg.LookupName(string(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
		}
		count, err := varint.ReadUint32(r)
		if err != nil {
			return nil, fmt.Errorf("section: %s count: %w", name, err)
		}
		if count > Volume {
			return nil, fmt.Errorf("section: %s count %d exceeds volume", name, count)
		}

		values := make(map[uint16]any, count)
		for j := uint32(0); j < count; j++ {
			var ib [2]byte
			if _, err := io.ReadFull(r, ib[:]); err != nil {
				return nil, fmt.Errorf("section: %s index: %w", name, err)
			}
			idx := binary.BigEndian.Uint16(ib[:])
			if idx >= Volume {
				return nil, fmt.Errorf("section: %s index %d out of range", name, idx)
			}
			v, err := c.Read(r)
			if err != nil {
				return nil, fmt.Errorf("section: %s value: %w", name, err)
			}
			values[idx] = v
		}
		s.slices[c.Type] = values
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("section: %d trailing bytes", r.Len())
	}
	return s, nil
}

func (a *Adapter) WriteSection(w io.Writer, s *Section) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type slice struct {
		codec  *ValueCodec
		values map[uint16]any
	}
	out := make([]slice, 0, len(s.slices))
	for typ, values := range s.slices {
		if len(values) == 0 {
			continue
		}
		c, ok := a.reg.Lookup(typ)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKind, typ)
		}
		out = append(out, slice{codec: c, values: values})
	}
	slices.SortFunc(out, func(a, b slice) int { return strings.Compare(a.codec.Name, b.codec.Name) })

	buf := varint.AppendUint32(nil, uint32(len(out)))
	for _, sl := range out {
		buf = varint.AppendUint32(buf, uint32(len(sl.codec.Name)))
		buf = append(buf, sl.codec.Name...)
		buf = varint.AppendUint32(buf, uint32(len(sl.values)))
		for _, idx := range slices.Sorted(maps.Keys(sl.values)) {
			buf = binary.BigEndian.AppendUint16(buf, idx)
			buf = sl.codec.Append(buf, sl.values[idx])
		}
	}
	_, err := w.Write(buf)
	return err
}

// TrimSection drops empty slices and compacts the rest.
func (a *Adapter) TrimSection(s *Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for typ, values := range s.slices {
		if len(values) == 0 {
			delete(s.slices, typ)
			continue
		}
		s.slices[typ] = maps.Clone(values)
	}
}

func (a *Adapter) IsSectionEmpty(s *Section) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, values := range s.slices {
		if len(values) > 0 {
			return false
		}
	}
	return true
}

// Classify returns the value's type, or nil when no codec is registered.
func (a *Adapter) Classify(value any) reflect.Type {
	typ := reflect.TypeOf(value)
	if _, ok := a.reg.Lookup(typ); !ok {
		return nil
	}
	return typ
}

func (a *Adapter) Set(s *Section, x, y, z int, kind reflect.Type, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.slices[kind]
	if !ok {
		values = make(map[uint16]any)
		s.slices[kind] = values
	}
	values[Index(x, y, z)] = value
}

func (a *Adapter) Remove(s *Section, x, y, z int, kind reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slices[kind], Index(x, y, z))
}

func (a *Adapter) Get(s *Section, x, y, z int, kind reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slices[kind][Index(x, y, z)]
	return v, ok
}

// Iterate visits values in index order over a snapshot, so fn may modify
// the section.
func (a *Adapter) Iterate(s *Section, kind reflect.Type, fn func(x, y, z int, value any) bool) {
	s.mu.RLock()
	snapshot := maps.Clone(s.slices[kind])
	s.mu.RUnlock()

	for _, idx := range slices.Sorted(maps.Keys(snapshot)) {
		x, y, z := Position(idx)
		if !fn(x, y, z, snapshot[idx]) {
			return
		}
	}
}

func (a *Adapter) HasSlice(s *Section, kind reflect.Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slices[kind]) > 0
}

func (a *Adapter) DeleteSlice(s *Section, kind reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slices, kind)
}
