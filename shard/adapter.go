package shard

import (
	"io"
	"reflect"
)

// Adapter plugs a section payload type M into cells.
//
// Sections are 16x16x16 value volumes. Values inside a section are grouped
// into slices by kind (the value's Go type). Implementations must be safe
// for concurrent use of distinct sections; concurrent use of one section is
// the adapter's own concern.
type Adapter[M any] interface {
	// NewSection returns an empty section.
	NewSection() M
	// ReadSection decodes a section. It must consume all of data or fail.
	ReadSection(data []byte) (M, error)
	// WriteSection encodes section to w.
	WriteSection(w io.Writer, section M) error
	// TrimSection releases unused capacity.
	TrimSection(section M)
	// IsSectionEmpty reports whether section holds no values.
	IsSectionEmpty(section M) bool

	// Classify returns the slice kind a value is stored under.
	Classify(value any) reflect.Type
	Set(section M, x, y, z int, kind reflect.Type, value any)
	Remove(section M, x, y, z int, kind reflect.Type)
	Get(section M, x, y, z int, kind reflect.Type) (any, bool)
	// Iterate visits values of kind until fn returns false.
	Iterate(section M, kind reflect.Type, fn func(x, y, z int, value any) bool)
	HasSlice(section M, kind reflect.Type) bool
	DeleteSlice(section M, kind reflect.Type)
}

// Hooks observe decoding. Nil fields are skipped.
type Hooks struct {
	BeforeReadCell     func(index int)
	AfterReadCell      func(index int)
	ReadCellFailure    func(index int, err error)
	BeforeReadSection  func(index int)
	ReadSectionFailure func(index int, err error)
}

func (h Hooks) beforeReadCell(i int) {
	if h.BeforeReadCell != nil {
		h.BeforeReadCell(i)
	}
}

func (h Hooks) afterReadCell(i int) {
	if h.AfterReadCell != nil {
		h.AfterReadCell(i)
	}
}

func (h Hooks) readCellFailure(i int, err error) {
	if h.ReadCellFailure != nil {
		h.ReadCellFailure(i, err)
	}
}

func (h Hooks) beforeReadSection(i int) {
	if h.BeforeReadSection != nil {
		h.BeforeReadSection(i)
	}
}

func (h Hooks) readSectionFailure(i int, err error) {
	if h.ReadSectionFailure != nil {
		h.ReadSectionFailure(i, err)
	}
}
