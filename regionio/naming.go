package regionio

import (
	"strconv"
	"strings"

	"github.com/hupe1980/gridstore/gridkey"
)

const (
	modernPrefix = "pv."
	legacyPrefix = "p."
	suffix       = ".ttp.lz4b"
)

// Name returns the blob name a shard is written under.
func Name(k gridkey.Key) string {
	return modernPrefix + strconv.FormatInt(int64(k), 10) + suffix
}

// LegacyName returns the name older stores used for k. Legacy blobs carry
// an unversioned shard stream.
func LegacyName(k gridkey.Key) string {
	return legacyPrefix + strconv.FormatInt(int64(k), 10) + suffix
}

// ParseName resolves a blob name to its shard key. ok is false for names
// that are not region blobs.
func ParseName(name string) (k gridkey.Key, legacy bool, ok bool) {
	rest, found := strings.CutSuffix(name, suffix)
	if !found {
		return 0, false, false
	}
	switch {
	case strings.HasPrefix(rest, modernPrefix):
		rest = rest[len(modernPrefix):]
	case strings.HasPrefix(rest, legacyPrefix):
		rest = rest[len(legacyPrefix):]
		legacy = true
	default:
		return 0, false, false
	}
	v, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return gridkey.Key(v), legacy, true
}
