package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manifest struct {
	Version     int    `json:"version"`
	WorldHeight int    `json:"world_height"`
	Compression string `json:"compression"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsAgree(t *testing.T) {
	in := manifest{Version: 1, WorldHeight: 384, Compression: "lz4"}

	a, err := JSON{}.Marshal(in)
	require.NoError(t, err)
	b, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	var out manifest
	require.NoError(t, GoJSON{}.Unmarshal(a, &out))
	assert.Equal(t, in, out)
}

func TestPretty(t *testing.T) {
	b, err := Pretty(nil, manifest{Version: 1})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "\n  \"version\": 1"))
}
