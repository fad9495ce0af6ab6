// Package compress implements single-block payload compression for region
// blobs.
//
// A block is [rawSize:u32 LE][storedSize:u32 LE][data]. A zero storedSize
// means data is stored uncompressed, which happens when compression saves
// less than a tenth of the input.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm.
type Codec uint8

const (
	// None stores blocks as is.
	None Codec = 0
	// LZ4 is fast block compression, the default.
	LZ4 Codec = 1
	// ZSTD trades speed for ratio.
	ZSTD Codec = 2
)

// HeaderSize is the block header length.
const HeaderSize = 8

// MaxRawSize bounds the decoded size accepted by Decode.
const MaxRawSize = 1 << 30

var (
	// ErrUnknownCodec is returned for an unrecognized codec id or name.
	ErrUnknownCodec = errors.New("compress: unknown codec")
	// ErrCorrupt is returned for malformed blocks.
	ErrCorrupt = errors.New("compress: corrupt block")
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool { return c <= ZSTD }

// Parse resolves a codec name.
func Parse(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRawSize))
	return dec
}

// Encode compresses data into a block.
func Encode(c Codec, data []byte) ([]byte, error) {
	var (
		packed []byte
		err    error
	)
	switch c {
	case None:
	case LZ4:
		packed, err = encodeLZ4(data)
	case ZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}
	if err != nil {
		return nil, err
	}

	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(packed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[HeaderSize:], packed)
	return out, nil
}

func encodeLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Decode expands a block produced by Encode with the same codec.
func Decode(c Codec, block []byte) ([]byte, error) {
	if len(block) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(block))
	}
	raw := binary.LittleEndian.Uint32(block[0:])
	stored := binary.LittleEndian.Uint32(block[4:])
	body := block[HeaderSize:]

	if raw > MaxRawSize {
		return nil, fmt.Errorf("%w: raw size %d", ErrCorrupt, raw)
	}
	if stored == 0 {
		if uint32(len(body)) != raw {
			return nil, fmt.Errorf("%w: stored %d bytes, want %d", ErrCorrupt, len(body), raw)
		}
		return body, nil
	}
	if uint32(len(body)) != stored {
		return nil, fmt.Errorf("%w: compressed %d bytes, want %d", ErrCorrupt, len(body), stored)
	}

	out := make([]byte, raw)
	switch c {
	case LZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, c)
	}
}
