package gridstore_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/internal/fs"
	"github.com/hupe1980/gridstore/regionio"
	"github.com/hupe1980/gridstore/shard"
	"github.com/stretchr/testify/require"
)

const regionPattern = "pv."

func faultyFS() *fs.FaultyFS { return fs.NewFaultyFS(nil) }

func injectRegionFault(f *fs.FaultyFS) {
	f.AddRule(regionPattern, fs.Fault{FailAfterBytes: -1, FailOnSync: true})
}

func clearRegionFault(f *fs.FaultyFS) { f.RemoveRule(regionPattern) }

func modernName(k gridkey.Key) string { return regionio.Name(k) }

func legacyName(k gridkey.Key) string { return regionio.LegacyName(k) }

func regionioWrap(raw []byte) ([]byte, error) { return regionio.Wrap(compress.LZ4, raw) }

// legacyShard builds an unversioned shard stream holding one cell at local
// (lx, lz) whose section 2 is data.
func legacyShard(t *testing.T, x, z int32, lx, lz, height int, data []byte) []byte {
	t.Helper()

	var cell bytes.Buffer
	sections := height / shard.SectionSize
	cell.Write([]byte{byte(lx), byte(lz), byte(sections)})
	for i := 0; i < sections; i++ {
		if i == 2 {
			require.NoError(t, binary.Write(&cell, binary.BigEndian, int32(len(data))))
			cell.Write(data)
			continue
		}
		require.NoError(t, binary.Write(&cell, binary.BigEndian, int32(0)))
	}

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.BigEndian, x))
	require.NoError(t, binary.Write(&out, binary.BigEndian, z))
	for i := 0; i < shard.Slots; i++ {
		if i == shard.Index(lx, lz) {
			require.NoError(t, binary.Write(&out, binary.BigEndian, int32(cell.Len())))
			out.Write(cell.Bytes())
			continue
		}
		require.NoError(t, binary.Write(&out, binary.BigEndian, int32(0)))
	}
	return out.Bytes()
}
