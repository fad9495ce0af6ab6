package shard

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/hupe1980/gridstore/varint"
)

var stringKind = reflect.TypeOf("")

// stringSection is a minimal section payload holding string values.
type stringSection struct {
	mu   sync.Mutex
	vals map[uint16]string
}

func pos(x, y, z int) uint16 { return uint16(y<<8 | z<<4 | x) }

type stringAdapter struct{}

var _ Adapter[*stringSection] = stringAdapter{}

func (stringAdapter) NewSection() *stringSection {
	return &stringSection{vals: make(map[uint16]string)}
}

func (a stringAdapter) ReadSection(data []byte) (*stringSection, error) {
	r := bytes.NewReader(data)
	n, err := varint.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	s := a.NewSection()
	for i := uint32(0); i < n; i++ {
		p, err := varint.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		l, err := varint.ReadUint32(r)
		if err != nil {
			return nil, err
		}
		if int(l) > r.Len() || p > 0xFFF {
			return nil, errors.New("bad entry")
		}
		b := make([]byte, l)
		_, _ = io.ReadFull(r, b)
		s.vals[uint16(p)] = string(b)
	}
	if r.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}
	return s, nil
}

func (stringAdapter) WriteSection(w io.Writer, s *stringSection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]int, 0, len(s.vals))
	for k := range s.vals {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	buf := varint.AppendUint32(nil, uint32(len(keys)))
	for _, k := range keys {
		v := s.vals[uint16(k)]
		buf = varint.AppendUint32(buf, uint32(k))
		buf = varint.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	_, err := w.Write(buf)
	return err
}

func (stringAdapter) TrimSection(*stringSection) {}

func (stringAdapter) IsSectionEmpty(s *stringSection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vals) == 0
}

func (stringAdapter) Classify(v any) reflect.Type { return reflect.TypeOf(v) }

func (stringAdapter) Set(s *stringSection, x, y, z int, kind reflect.Type, v any) {
	if kind != stringKind {
		return
	}
	s.mu.Lock()
	s.vals[pos(x, y, z)] = v.(string)
	s.mu.Unlock()
}

func (stringAdapter) Remove(s *stringSection, x, y, z int, kind reflect.Type) {
	s.mu.Lock()
	delete(s.vals, pos(x, y, z))
	s.mu.Unlock()
}

func (stringAdapter) Get(s *stringSection, x, y, z int, kind reflect.Type) (any, bool) {
	if kind != stringKind {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[pos(x, y, z)]
	return v, ok
}

func (stringAdapter) Iterate(s *stringSection, kind reflect.Type, fn func(x, y, z int, v any) bool) {
	if kind != stringKind {
		return
	}
	s.mu.Lock()
	keys := make([]int, 0, len(s.vals))
	for k := range s.vals {
		keys = append(keys, int(k))
	}
	vals := make(map[int]string, len(keys))
	for _, k := range keys {
		vals[k] = s.vals[uint16(k)]
	}
	s.mu.Unlock()

	sort.Ints(keys)
	for _, k := range keys {
		if !fn(k&15, k>>8, (k>>4)&15, vals[k]) {
			return
		}
	}
}

func (stringAdapter) HasSlice(s *stringSection, kind reflect.Type) bool {
	return kind == stringKind && !stringAdapter{}.IsSectionEmpty(s)
}

func (stringAdapter) DeleteSlice(s *stringSection, kind reflect.Type) {
	if kind != stringKind {
		return
	}
	s.mu.Lock()
	clear(s.vals)
	s.mu.Unlock()
}
