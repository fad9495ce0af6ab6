// Package regionio persists shards as region blobs in a blobstore.Store.
//
// Each shard at packed key k is stored as "pv.<k>.ttp.lz4b". Stores written
// by older releases used "p.<k>.ttp.lz4b" with an unversioned shard stream;
// reads fall back to that name and writes migrate it.
//
// A blob is a 12 byte container header followed by a compressed block:
//
//	[magic "GSR1"][codec u8][reserved 3][crc32c u32 LE of raw shard][block]
//
// A checksum mismatch is logged and flagged, and the shard is decoded
// anyway so undamaged cells survive.
package regionio
