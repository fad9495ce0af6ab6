package regionio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/internal/hash"
)

const (
	magic = "GSR1"
	// HeaderSize is the fixed container header length.
	HeaderSize = 12
)

// ErrBadHeader is returned for blobs without a valid container header.
var ErrBadHeader = errors.New("regionio: bad container header")

// Wrap compresses raw with c and prepends the container header
// [magic "GSR1"][codec u8][reserved 3][crc32c u32 LE of raw].
func Wrap(c compress.Codec, raw []byte) ([]byte, error) {
	block, err := compress.Encode(c, raw)
	if err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize, HeaderSize+len(block))
	copy(out, magic)
	out[4] = byte(c)
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(raw))
	return append(out, block...), nil
}

// Unwrap validates the header and decompresses the payload. A checksum
// mismatch is not an error: the payload is returned with intact=false so
// the caller can still salvage undamaged cells.
func Unwrap(blob []byte) (raw []byte, c compress.Codec, intact bool, err error) {
	if len(blob) < HeaderSize || string(blob[:4]) != magic {
		return nil, 0, false, ErrBadHeader
	}
	c = compress.Codec(blob[4])
	if !c.Valid() {
		return nil, 0, false, fmt.Errorf("%w: codec %d", ErrBadHeader, blob[4])
	}
	raw, err = compress.Decode(c, blob[HeaderSize:])
	if err != nil {
		return nil, c, false, err
	}
	return raw, c, hash.VerifyCRC32C(raw, binary.LittleEndian.Uint32(blob[8:])), nil
}
