package compress

import (
	"bytes"
	"testing"

	"github.com/hupe1980/gridstore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	rng := testutil.NewRNG(1)
	inputs := map[string][]byte{
		"empty":      {},
		"repetitive": bytes.Repeat([]byte("gridstore "), 4096),
		"random":     rng.Bytes(8192),
	}

	for _, c := range []Codec{None, LZ4, ZSTD} {
		for name, in := range inputs {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				block, err := Encode(c, in)
				require.NoError(t, err)

				out, err := Decode(c, block)
				require.NoError(t, err)
				assert.Equal(t, len(in), len(out))
				assert.True(t, bytes.Equal(in, out))
			})
		}
	}
}

func TestEncode_CompressesRepetitiveData(t *testing.T) {
	in := bytes.Repeat([]byte{0, 0, 0, 1}, 1<<14)
	for _, c := range []Codec{LZ4, ZSTD} {
		block, err := Encode(c, in)
		require.NoError(t, err)
		assert.Less(t, len(block), len(in)/4, c.String())
	}

	block, err := Encode(None, in)
	require.NoError(t, err)
	assert.Len(t, block, HeaderSize+len(in))
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode(LZ4, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)

	block, err := Encode(LZ4, bytes.Repeat([]byte("abc"), 1000))
	require.NoError(t, err)

	_, err = Decode(LZ4, block[:len(block)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(ZSTD, block)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParse(t *testing.T) {
	for _, c := range []Codec{None, LZ4, ZSTD} {
		got, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
		assert.True(t, c.Valid())
	}
	_, err := Parse("snappy")
	assert.ErrorIs(t, err, ErrUnknownCodec)
	assert.False(t, Codec(9).Valid())
}
