package gridstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/shard"
)

const (
	// ManifestName is the blob holding the store manifest.
	ManifestName = "store.json"
	// FormatVersion is the manifest format written by this release.
	FormatVersion = 1
)

// Manifest describes a store: how tall its columns are and how its
// regions are written.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	WorldHeight   int       `json:"world_height"`
	ShardVersion  int       `json:"shard_version"`
	Compression   string    `json:"compression"`
}

// ReadManifest loads the manifest of the store in blobs.
// It returns blobstore.ErrNotFound for stores without one.
func ReadManifest(ctx context.Context, blobs blobstore.Store) (*Manifest, error) {
	data, err := blobs.Get(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := codec.Default.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompatibleFormat, ManifestName, err)
	}
	if m.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("%w: manifest version %d", ErrIncompatibleFormat, m.FormatVersion)
	}
	return m, nil
}

func writeManifest(ctx context.Context, blobs blobstore.Store, m *Manifest) error {
	data, err := codec.Pretty(codec.Default, m)
	if err != nil {
		return err
	}
	return blobs.Put(ctx, ManifestName, data)
}

// resolveManifest reads the manifest, creating it for new stores, and
// reconciles it with o. An explicitly configured height must match.
func resolveManifest(ctx context.Context, blobs blobstore.Store, o *options) (*Manifest, error) {
	m, err := ReadManifest(ctx, blobs)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		if err := shard.ValidateHeight(o.worldHeight); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		m = &Manifest{
			FormatVersion: FormatVersion,
			ID:            uuid.NewString(),
			CreatedAt:     o.clock().UTC(),
			WorldHeight:   o.worldHeight,
			ShardVersion:  shard.Current,
			Compression:   o.compression.String(),
		}
		if err := writeManifest(ctx, blobs, m); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
		return m, nil
	case err != nil:
		return nil, err
	}

	if o.heightSet && o.worldHeight != m.WorldHeight {
		return nil, fmt.Errorf("%w: world height %d, store has %d", ErrIncompatibleFormat, o.worldHeight, m.WorldHeight)
	}
	o.worldHeight = m.WorldHeight
	if !o.compressionSet {
		if c, err := compress.Parse(m.Compression); err == nil {
			o.compression = c
		}
	}
	return m, nil
}
