package shard

import "errors"

var (
	// ErrCellClosed is returned by Cell.Use after the cell was closed.
	ErrCellClosed = errors.New("shard: cell is closed")

	// ErrCorrupt is returned for malformed shard or cell bytes.
	ErrCorrupt = errors.New("shard: corrupt data")

	// ErrUnsupportedVersion is returned for shards written by a newer format.
	ErrUnsupportedVersion = errors.New("shard: unsupported format version")

	// ErrInvalidHeight is returned for a world height that is not a positive
	// multiple of 16 up to MaxWorldHeight.
	ErrInvalidHeight = errors.New("shard: invalid world height")
)
