package varint

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint32_Boundaries(t *testing.T) {
	cases := []struct {
		v   uint32
		len int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{math.MaxUint32, 5},
	}
	for _, tc := range cases {
		enc := AppendUint32(nil, tc.v)
		assert.Len(t, enc, tc.len, "value %d", tc.v)

		got, err := ReadUint32(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, tc.v, got)
	}
}

func TestInt32_ZigZag(t *testing.T) {
	for _, v := range []int32{0, -1, 1, -64, 63, -65, math.MinInt32, math.MaxInt32} {
		var buf bytes.Buffer
		require.NoError(t, WriteInt32(&buf, v))
		got, err := ReadInt32(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, uint32(1), ZigZag32(-1))
	assert.Equal(t, uint32(2), ZigZag32(1))
}

func TestUint64AndInt64(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint64(&buf, math.MaxUint64))
	require.NoError(t, WriteInt64(&buf, math.MinInt64))
	require.NoError(t, WriteUint32(&buf, 300))

	u, err := ReadUint64(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u)

	s, err := ReadInt64(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), s)

	small, err := ReadUint32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), small)
}

func TestReadUint32_TooLong(t *testing.T) {
	_, err := ReadUint32(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}))
	assert.ErrorIs(t, err, ErrTooLong)

	// Fifth byte carrying more than four payload bits overflows 32 bits.
	_, err = ReadUint32(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x1F}))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestReadUint32_Truncated(t *testing.T) {
	_, err := ReadUint32(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadUint32(bytes.NewReader([]byte{0x80}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadUint64_TooLong(t *testing.T) {
	enc := bytes.Repeat([]byte{0xFF}, 11)
	_, err := ReadUint64(bytes.NewReader(enc))
	assert.ErrorIs(t, err, ErrTooLong)
}
