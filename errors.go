package gridstore

import (
	"errors"

	"github.com/hupe1980/gridstore/shard"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("gridstore: store is closed")

	// ErrInvalidArgument is returned for unusable options or values, such
	// as a value whose type has no registered codec.
	ErrInvalidArgument = errors.New("gridstore: invalid argument")

	// ErrOutOfBounds is returned for an empty or inverted cell range.
	ErrOutOfBounds = errors.New("gridstore: coordinates out of bounds")

	// ErrCorrupt wraps shard decode failures.
	ErrCorrupt = shard.ErrCorrupt

	// ErrIncompatibleFormat is returned when the store on disk was created
	// with a different world height or a newer format.
	ErrIncompatibleFormat = errors.New("gridstore: incompatible store format")
)
