package shard

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/gridstore/varint"
)

// MaxCellBytes bounds a single slot record.
const MaxCellBytes = 1 << 26

// DecoderOption configures a Decoder.
type DecoderOption func(*decoderOptions)

type decoderOptions struct {
	hooks  Hooks
	logger *slog.Logger
}

// WithHooks installs decode callbacks.
func WithHooks(h Hooks) DecoderOption {
	return func(o *decoderOptions) {
		o.hooks = h
	}
}

// WithLogger sets the logger used for skipped cells.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(o *decoderOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Decoder reads serialized shards. A cell that fails to parse is skipped
// and recorded; the rest of the shard still loads.
type Decoder[M any] struct {
	worldHeight int
	adapter     Adapter[M]
	hooks       Hooks
	logger      *slog.Logger
	errored     atomic.Bool
}

// NewDecoder returns a decoder for shards of the given world height.
func NewDecoder[M any](worldHeight int, adapter Adapter[M], opts ...DecoderOption) (*Decoder[M], error) {
	if err := ValidateHeight(worldHeight); err != nil {
		return nil, err
	}
	o := decoderOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder[M]{
		worldHeight: worldHeight,
		adapter:     adapter,
		hooks:       o.hooks,
		logger:      o.logger,
	}, nil
}

// HasError reports whether any cell was skipped since the last call, and
// clears the flag.
func (d *Decoder[M]) HasError() bool { return d.errored.Swap(false) }

// MarkError raises the error flag, e.g. for a container checksum mismatch.
func (d *Decoder[M]) MarkError() { d.errored.Store(true) }

// Decode reads a versioned shard.
func (d *Decoder[M]) Decode(r io.Reader) (*Shard[M], error) {
	return d.decode(r, true)
}

// DecodeUnversioned reads a shard written without a version field.
func (d *Decoder[M]) DecodeUnversioned(r io.Reader) (*Shard[M], error) {
	return d.decode(r, false)
}

func (d *Decoder[M]) decode(r io.Reader, versioned bool) (*Shard[M], error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	x, err := readInt32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: shard x: %v", ErrCorrupt, err)
	}
	z, err := readInt32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: shard z: %v", ErrCorrupt, err)
	}

	version := Missing
	if versioned {
		v, err := varint.ReadInt32(br)
		if err != nil {
			return nil, fmt.Errorf("%w: shard version: %v", ErrCorrupt, err)
		}
		if v > Current {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		version = int(v)
	}

	s, err := New(d.worldHeight, x, z, d.adapter)
	if err != nil {
		return nil, err
	}

	var lenBuf [4]byte
	for i := 0; i < Slots; i++ {
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: slot %d length: %v", ErrCorrupt, i, err)
		}
		size := int32(binary.BigEndian.Uint32(lenBuf[:]))
		if size == 0 {
			continue
		}
		if size < 0 || size > MaxCellBytes {
			return nil, fmt.Errorf("%w: slot %d length %d", ErrCorrupt, i, size)
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ErrCorrupt, i, err)
		}

		d.hooks.beforeReadCell(i)
		c, err := readCell(data, version, s.sections, d.adapter, d.hooks)
		if err == nil && Index(c.X(), c.Z()) != i {
			err = fmt.Errorf("%w: cell (%d,%d) stored in slot %d", ErrCorrupt, c.X(), c.Z(), i)
		}
		if err != nil {
			d.errored.Store(true)
			d.hooks.readCellFailure(i, err)
			d.logger.Warn("skipping corrupt cell",
				slog.Int("shard_x", int(x)),
				slog.Int("shard_z", int(z)),
				slog.Int("slot", i),
				slog.String("error", err.Error()))
			continue
		}
		s.cells[i].Store(c)
		d.hooks.afterReadCell(i)
	}
	return s, nil
}

// IsCorrupt reports whether err came from malformed shard bytes.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }
