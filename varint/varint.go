// Package varint implements LEB128 variable-length integers: 7 payload bits
// per byte, least significant group first, high bit set on every byte except
// the last. Signed values are zig-zag mapped before encoding.
//
// The 64-bit wire format is identical to encoding/binary's Uvarint/Varint.
// The 32-bit readers additionally reject encodings longer than five bytes.
package varint

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxLen32 is the maximum encoded length of a 32-bit value.
const MaxLen32 = 5

// MaxLen64 is the maximum encoded length of a 64-bit value.
const MaxLen64 = binary.MaxVarintLen64

// ErrTooLong is returned when an encoding exceeds the width of its type.
var ErrTooLong = errors.New("varint: variable length quantity is too long")

// AppendUint32 appends the encoding of v to dst.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}

// AppendUint64 appends the encoding of v to dst.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// AppendInt32 appends the zig-zag encoding of v to dst.
func AppendInt32(dst []byte, v int32) []byte {
	return AppendUint32(dst, ZigZag32(v))
}

// AppendInt64 appends the zig-zag encoding of v to dst.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.AppendVarint(dst, v)
}

// WriteUint32 writes the encoding of v to w.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [MaxLen32]byte
	_, err := w.Write(AppendUint32(buf[:0], v))
	return err
}

// WriteUint64 writes the encoding of v to w.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [MaxLen64]byte
	_, err := w.Write(AppendUint64(buf[:0], v))
	return err
}

// WriteInt32 writes the zig-zag encoding of v to w.
func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, ZigZag32(v))
}

// WriteInt64 writes the zig-zag encoding of v to w.
func WriteInt64(w io.Writer, v int64) error {
	var buf [MaxLen64]byte
	_, err := w.Write(AppendInt64(buf[:0], v))
	return err
}

// ReadUint32 reads an unsigned 32-bit value.
// A truncated stream yields io.ErrUnexpectedEOF; an empty one yields io.EOF.
func ReadUint32(r io.ByteReader) (uint32, error) {
	var v uint32
	for shift := uint(0); ; shift += 7 {
		if shift > 28 {
			return 0, ErrTooLong
		}
		b, err := r.ReadByte()
		if err != nil {
			if shift > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if shift == 28 && b > 0x0F {
			return 0, ErrTooLong
		}
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// ReadUint64 reads an unsigned 64-bit value.
func ReadUint64(r io.ByteReader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, ErrTooLong
	}
	return v, err
}

// ReadInt32 reads a zig-zag encoded signed 32-bit value.
func ReadInt32(r io.ByteReader) (int32, error) {
	v, err := ReadUint32(r)
	if err != nil {
		return 0, err
	}
	return UnZigZag32(v), nil
}

// ReadInt64 reads a zig-zag encoded signed 64-bit value.
func ReadInt64(r io.ByteReader) (int64, error) {
	v, err := binary.ReadVarint(r)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, ErrTooLong
	}
	return v, err
}

// ZigZag32 maps signed values onto unsigned ones so small magnitudes stay short.
func ZigZag32(v int32) uint32 { return uint32(v<<1) ^ uint32(v>>31) }

// UnZigZag32 reverses ZigZag32.
func UnZigZag32(v uint32) int32 { return int32(v>>1) ^ -int32(v&1) }
