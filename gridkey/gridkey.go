// Package gridkey packs two signed 32-bit grid coordinates into one int64 key
// and converts between block, cell and shard coordinate spaces.
//
// The packed layout is x in the high 32 bits and the bit pattern of z in the
// low 32 bits. Every (x, z) pair in the int32 range maps to a distinct key.
package gridkey

const (
	// CellShift converts block coordinates to cell coordinates.
	CellShift = 4
	// CellSize is the width of a cell in blocks.
	CellSize = 1 << CellShift
	// ShardShift converts cell coordinates to shard coordinates.
	ShardShift = 5
	// ShardSize is the width of a shard in cells.
	ShardSize = 1 << ShardShift
)

// Key is a packed (x, z) pair.
type Key int64

// Encode packs x and z into a Key.
func Encode(x, z int32) Key {
	return Key(int64(x)<<32 | int64(uint32(z)))
}

// X returns the high coordinate.
func (k Key) X() int32 { return int32(k >> 32) }

// Z returns the low coordinate.
func (k Key) Z() int32 { return int32(k) }

// Decode unpacks k.
func (k Key) Decode() (x, z int32) { return k.X(), k.Z() }

// Uint64 returns the bit pattern of k, as used by bitmap indexes.
func (k Key) Uint64() uint64 { return uint64(k) }

// FromUint64 reverses Uint64.
func FromUint64(v uint64) Key { return Key(int64(v)) }

// BlockToCell maps a block coordinate to its cell coordinate.
func BlockToCell(v int) int32 { return int32(v >> CellShift) }

// CellToShard maps a cell coordinate to its shard coordinate.
func CellToShard(v int32) int32 { return v >> ShardShift }

// CellLocal maps a cell coordinate to its position inside the shard.
func CellLocal(v int32) int { return int(v & (ShardSize - 1)) }

// BlockLocal maps a block coordinate to its position inside the cell.
func BlockLocal(v int) int { return v & (CellSize - 1) }

// ShardOfCell returns the packed key of the shard owning cell (cx, cz).
func ShardOfCell(cx, cz int32) Key {
	return Encode(CellToShard(cx), CellToShard(cz))
}
