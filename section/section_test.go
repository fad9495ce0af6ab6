package section

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/hupe1980/gridstore/shard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type biome struct{ ID uint8 }

func TestIndexPosition(t *testing.T) {
	for _, p := range [][3]int{{0, 0, 0}, {15, 15, 15}, {1, 2, 3}, {15, 0, 7}} {
		x, y, z := Position(Index(p[0], p[1], p[2]))
		assert.Equal(t, p, [3]int{x, y, z})
	}
	assert.Less(t, int(Index(15, 15, 15)), Volume)
}

func TestAdapter_RoundTripAllKinds(t *testing.T) {
	a := NewAdapter(nil)
	s := a.NewSection()

	values := []any{"hello", int32(-7), int64(1 << 40), 3.25, true, []byte{1, 2, 3}}
	for i, v := range values {
		kind := a.Classify(v)
		require.NotNil(t, kind, "%T", v)
		a.Set(s, i, i, i, kind, v)
	}
	assert.False(t, a.IsSectionEmpty(s))
	assert.Len(t, s.Kinds(), len(values))

	var buf bytes.Buffer
	require.NoError(t, a.WriteSection(&buf, s))

	out, err := a.ReadSection(buf.Bytes())
	require.NoError(t, err)
	for i, v := range values {
		got, ok := a.Get(out, i, i, i, reflect.TypeOf(v))
		require.True(t, ok, "%T", v)
		assert.Equal(t, v, got)
	}

	// Serialization is deterministic.
	var again bytes.Buffer
	require.NoError(t, a.WriteSection(&again, out))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestAdapter_CustomKind(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Register(reg, "biome",
		func(dst []byte, v biome) []byte { return append(dst, v.ID) },
		func(r *bytes.Reader) (biome, error) {
			b, err := r.ReadByte()
			return biome{ID: b}, err
		}))
	assert.Error(t, Register(reg, "biome",
		func(dst []byte, v int) []byte { return dst },
		func(*bytes.Reader) (int, error) { return 0, nil }))

	a := NewAdapter(reg)
	s := a.NewSection()
	kind := a.Classify(biome{ID: 4})
	require.NotNil(t, kind)
	a.Set(s, 1, 1, 1, kind, biome{ID: 4})

	var buf bytes.Buffer
	require.NoError(t, a.WriteSection(&buf, s))

	out, err := a.ReadSection(buf.Bytes())
	require.NoError(t, err)
	got, ok := a.Get(out, 1, 1, 1, kind)
	require.True(t, ok)
	assert.Equal(t, biome{ID: 4}, got)

	// A registry without the kind cannot read it.
	_, err = NewAdapter(nil).ReadSection(buf.Bytes())
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestAdapter_ClassifyUnknown(t *testing.T) {
	a := NewAdapter(nil)
	assert.Nil(t, a.Classify(struct{}{}))
	assert.Nil(t, a.Classify(uint16(1)))
}

func TestAdapter_ReadRejectsMalformed(t *testing.T) {
	a := NewAdapter(nil)
	s := a.NewSection()
	a.Set(s, 0, 0, 0, reflect.TypeOf(""), "abc")

	var buf bytes.Buffer
	require.NoError(t, a.WriteSection(&buf, s))
	data := buf.Bytes()

	_, err := a.ReadSection(data[:len(data)-1])
	assert.Error(t, err)

	_, err = a.ReadSection(append(bytes.Clone(data), 0))
	assert.Error(t, err, "trailing bytes")

	// [1 slice]["string"][1 entry][index 0x1000]
	bad := []byte{1, 6}
	bad = append(bad, "string"...)
	bad = append(bad, 1)
	bad = binary.BigEndian.AppendUint16(bad, Volume)
	_, err = a.ReadSection(bad)
	assert.Error(t, err)
}

func TestAdapter_IterateRemoveTrim(t *testing.T) {
	a := NewAdapter(nil)
	s := a.NewSection()
	str := reflect.TypeOf("")
	i32 := reflect.TypeOf(int32(0))

	a.Set(s, 2, 0, 0, str, "b")
	a.Set(s, 1, 0, 0, str, "a")
	a.Set(s, 0, 5, 0, str, "c")
	a.Set(s, 0, 0, 0, i32, int32(1))

	var seen []string
	a.Iterate(s, str, func(x, y, z int, v any) bool {
		seen = append(seen, v.(string))
		a.Remove(s, x, y, z, str)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Zero(t, s.Len(str))
	assert.False(t, a.HasSlice(s, str))
	assert.True(t, a.HasSlice(s, i32))

	a.TrimSection(s)
	assert.Len(t, s.Kinds(), 1)

	a.DeleteSlice(s, i32)
	assert.True(t, a.IsSectionEmpty(s))
}

func TestAdapter_InCell(t *testing.T) {
	a := NewAdapter(nil)
	sh, err := shard.New[*Section](32, 0, 0, a)
	require.NoError(t, err)

	c := sh.GetOrCreate(4, 4)
	assert.True(t, c.Set(1, 20, 1, "x"))
	assert.False(t, c.Set(1, 20, 1, struct{}{}))

	var buf bytes.Buffer
	_, err = sh.WriteTo(&buf)
	require.NoError(t, err)

	d, err := shard.NewDecoder[*Section](32, a)
	require.NoError(t, err)
	out, err := d.Decode(&buf)
	require.NoError(t, err)

	got, ok := out.Cell(4, 4)
	require.True(t, ok)
	v, ok := got.Get(1, 20, 1, reflect.TypeOf(""))
	require.True(t, ok)
	assert.Equal(t, "x", v)
}
