// Package shard implements the 32x32 cell grid that is the unit of loading,
// persistence and eviction.
//
// A Shard owns Slots atomic cell pointers. Cells are created on first touch
// with compare-and-swap, so concurrent callers always agree on one instance.
// Each Cell holds SectionCount sections of an adapter-defined payload type
// plus 64 flag bits.
//
// Binary layout:
//
//	shard: [x:i32][z:i32][version:varint] then Slots x [len:i32][cell bytes]
//	cell:  [x:u8][z:u8][sections:u8][flags:uvarint] then per section [len:i32][bytes]
//
// Integers are big endian. A zero length marks an absent cell or section.
// Decoding skips any cell that fails to parse and records the failure in
// the Decoder (see Decoder.HasError).
package shard
