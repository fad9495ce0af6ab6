package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/gridstore"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/blobstore/s3"
	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/internal/flock"
	"github.com/hupe1980/gridstore/regionio"
	"github.com/hupe1980/gridstore/section"
)

// target is an opened store location.
type target struct {
	location string
	blobs    blobstore.Store
	manifest *gridstore.Manifest
	regions  *regionio.IO[*section.Section]
	adapter  *section.Adapter
	lock     *flock.Lock
}

// openTarget resolves location to a blob store and reads its manifest.
// exclusive takes the directory lock of local stores.
func (g *globalOptions) openTarget(ctx context.Context, location string, logger *slog.Logger, exclusive bool) (*target, error) {
	blobs, err := g.openBlobs(ctx, location)
	if err != nil {
		return nil, err
	}
	t := &target{location: location, blobs: blobs}

	if local, ok := blobs.(*blobstore.LocalStore); ok && exclusive {
		lock := flock.New(filepath.Join(local.Root(), gridstore.LockName))
		if err := lock.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("lock %s: %w", location, err)
		}
		t.lock = lock
	}

	m, err := gridstore.ReadManifest(ctx, blobs)
	if errors.Is(err, blobstore.ErrNotFound) {
		_ = t.Close()
		return nil, fmt.Errorf("no store at %s: %w", location, err)
	}
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	t.manifest = m

	codec, err := compress.Parse(m.Compression)
	if err != nil {
		codec = compress.LZ4
	}
	t.adapter = section.NewAdapter(nil)
	t.regions, err = regionio.New[*section.Section](blobs, m.WorldHeight, t.adapter,
		regionio.WithCompression(codec),
		regionio.WithLogger(logger))
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

func (g *globalOptions) openBlobs(ctx context.Context, location string) (blobstore.Store, error) {
	if g.s3Bucket == "" {
		if _, err := os.Stat(location); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(location)
	}

	var opts []func(*config.LoadOptions) error
	if g.s3Region != "" {
		opts = append(opts, config.WithRegion(g.s3Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if g.s3Endpoint != "" {
			o.BaseEndpoint = aws.String(g.s3Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewStore(client, g.s3Bucket, s3.WithPrefix(location)), nil
}

// blobSize returns the stored size of name.
func (t *target) blobSize(ctx context.Context, name string) (int64, error) {
	if sz, ok := t.blobs.(interface {
		Size(ctx context.Context, name string) (int64, error)
	}); ok {
		return sz.Size(ctx, name)
	}
	data, err := t.blobs.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Close releases the directory lock. Local stores opened without it are
// left as they are, since a running process may own their temp directory.
func (t *target) Close() error {
	if t.lock == nil {
		return nil
	}
	var result *multierror.Error
	if t.regions != nil {
		if err := t.regions.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	} else if c, ok := t.blobs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := t.lock.Release(context.Background()); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
