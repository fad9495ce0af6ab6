package section

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sync"

	"github.com/hupe1980/gridstore/varint"
)

// ErrUnknownKind is returned for values whose type has no registered codec.
var ErrUnknownKind = errors.New("section: unknown value kind")

// ValueCodec encodes values of one Go type.
type ValueCodec struct {
	Name   string
	Type   reflect.Type
	Append func(dst []byte, v any) []byte
	Read   func(r *bytes.Reader) (any, error)
}

// Registry maps value types to their codecs and persisted names.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*ValueCodec
	byName map[string]*ValueCodec
}

// NewRegistry returns a registry preloaded with string, int32, int64,
// float64, bool and []byte codecs.
func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]*ValueCodec),
		byName: make(map[string]*ValueCodec),
	}
	mustRegister(r, "string",
		func(dst []byte, v string) []byte {
			dst = varint.AppendUint32(dst, uint32(len(v)))
			return append(dst, v...)
		},
		func(br *bytes.Reader) (string, error) {
			b, err := readBytes(br)
			return string(b), err
		})
	mustRegister(r, "int32",
		varint.AppendInt32,
		func(br *bytes.Reader) (int32, error) { return varint.ReadInt32(br) })
	mustRegister(r, "int64",
		varint.AppendInt64,
		func(br *bytes.Reader) (int64, error) { return varint.ReadInt64(br) })
	mustRegister(r, "float64",
		func(dst []byte, v float64) []byte {
			return binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
		},
		func(br *bytes.Reader) (float64, error) {
			var b [8]byte
			if _, err := io.ReadFull(br, b[:]); err != nil {
				return 0, err
			}
			return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
		})
	mustRegister(r, "bool",
		func(dst []byte, v bool) []byte {
			if v {
				return append(dst, 1)
			}
			return append(dst, 0)
		},
		func(br *bytes.Reader) (bool, error) {
			b, err := br.ReadByte()
			if err != nil {
				return false, err
			}
			if b > 1 {
				return false, fmt.Errorf("section: invalid bool byte %d", b)
			}
			return b == 1, nil
		})
	mustRegister(r, "bytes",
		func(dst []byte, v []byte) []byte {
			dst = varint.AppendUint32(dst, uint32(len(v)))
			return append(dst, v...)
		},
		readBytes)
	return r
}

// Register adds a codec for T under name. Names are persisted and must be
// stable.
func Register[T any](r *Registry, name string, enc func(dst []byte, v T) []byte, dec func(r *bytes.Reader) (T, error)) error {
	typ := reflect.TypeFor[T]()
	c := &ValueCodec{
		Name: name,
		Type: typ,
		Append: func(dst []byte, v any) []byte {
			return enc(dst, v.(T))
		},
		Read: func(br *bytes.Reader) (any, error) {
			return dec(br)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("section: kind name %q already registered", name)
	}
	if _, ok := r.byType[typ]; ok {
		return fmt.Errorf("section: type %s already registered", typ)
	}
	r.byType[typ] = c
	r.byName[name] = c
	return nil
}

func mustRegister[T any](r *Registry, name string, enc func([]byte, T) []byte, dec func(*bytes.Reader) (T, error)) {
	if err := Register(r, name, enc, dec); err != nil {
		panic(err)
	}
}

// Lookup returns the codec for typ.
func (r *Registry) Lookup(typ reflect.Type) (*ValueCodec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[typ]
	return c, ok
}

// LookupName returns the codec persisted under name.
func (r *Registry) LookupName(name string) (*ValueCodec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

const maxValueBytes = 1 << 24

func readBytes(br *bytes.Reader) ([]byte, error) {
	n, err := varint.ReadUint32(br)
	if err != nil {
		return nil, err
	}
	if n > maxValueBytes || int(n) > br.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	_, _ = io.ReadFull(br, b)
	return b, nil
}
