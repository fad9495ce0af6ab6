package regionio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hashicorp/go-multierror"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/internal/resource"
	"github.com/hupe1980/gridstore/shard"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("regionio: closed")

// Metrics receives region IO measurements.
type Metrics interface {
	RecordRead(bytes int, d time.Duration, err error)
	RecordWrite(bytes int, d time.Duration, err error)
	RecordCorruption(k gridkey.Key)
}

type noopMetrics struct{}

func (noopMetrics) RecordRead(int, time.Duration, error)  {}
func (noopMetrics) RecordWrite(int, time.Duration, error) {}
func (noopMetrics) RecordCorruption(gridkey.Key)          {}

// Option configures an IO.
type Option func(*options)

type options struct {
	codec   compress.Codec
	logger  *slog.Logger
	rc      *resource.Controller
	metrics Metrics
	hooks   shard.Hooks
}

// WithCompression selects the codec for written regions. Reads honor the
// codec recorded in each blob.
func WithCompression(c compress.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResourceController rate limits region bytes through rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithHooks installs cell decode callbacks.
func WithHooks(h shard.Hooks) Option {
	return func(o *options) {
		o.hooks = h
	}
}

// IO reads and writes shards as region blobs.
type IO[M any] struct {
	store       blobstore.Store
	worldHeight int
	adapter     shard.Adapter[M]
	opts        options

	errored atomic.Bool
	closed  atomic.Bool
}

// New returns a region IO over store.
func New[M any](store blobstore.Store, worldHeight int, adapter shard.Adapter[M], opts ...Option) (*IO[M], error) {
	if err := shard.ValidateHeight(worldHeight); err != nil {
		return nil, err
	}
	o := options{
		codec:   compress.LZ4,
		logger:  slog.New(slog.DiscardHandler),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.codec.Valid() {
		return nil, fmt.Errorf("%w: %d", compress.ErrUnknownCodec, o.codec)
	}
	return &IO[M]{
		store:       store,
		worldHeight: worldHeight,
		adapter:     adapter,
		opts:        o,
	}, nil
}

// Store returns the backing blob store.
func (r *IO[M]) Store() blobstore.Store { return r.store }

// Codec returns the codec used for writes.
func (r *IO[M]) Codec() compress.Codec { return r.opts.codec }

// HasError reports whether any read since the last call found corruption,
// and clears the flag.
func (r *IO[M]) HasError() bool { return r.errored.Swap(false) }

// Resolve returns the blob name holding k. The modern name wins when both
// exist.
func (r *IO[M]) Resolve(ctx context.Context, k gridkey.Key) (name string, legacy bool, found bool, err error) {
	name = Name(k)
	ok, err := r.store.Exists(ctx, name)
	if err != nil || ok {
		return name, false, ok, err
	}
	old := LegacyName(k)
	ok, err = r.store.Exists(ctx, old)
	if err != nil || !ok {
		return name, false, false, err
	}
	return old, true, true, nil
}

// Exists reports whether k is persisted under either name.
func (r *IO[M]) Exists(ctx context.Context, k gridkey.Key) (bool, error) {
	_, _, found, err := r.Resolve(ctx, k)
	return found, err
}

// Read loads the shard stored for k. It returns blobstore.ErrNotFound when
// k was never written.
func (r *IO[M]) Read(ctx context.Context, k gridkey.Key) (*shard.Shard[M], error) {
	s, _, err := r.ReadChecked(ctx, k)
	return s, err
}

// ReadChecked is Read that also reports whether this read skipped corrupt
// cells or saw a checksum mismatch.
func (r *IO[M]) ReadChecked(ctx context.Context, k gridkey.Key) (s *shard.Shard[M], corrupt bool, err error) {
	start := time.Now()
	size := 0
	defer func() {
		r.opts.metrics.RecordRead(size, time.Since(start), err)
	}()

	name, legacy, found, err := r.Resolve(ctx, k)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, blobstore.ErrNotFound
	}

	blob, err := r.store.Get(ctx, name)
	if err != nil {
		return nil, false, err
	}
	size = len(blob)
	if err = r.opts.rc.WaitIO(ctx, size); err != nil {
		return nil, false, err
	}

	raw, _, intact, err := Unwrap(blob)
	if err != nil {
		return nil, false, fmt.Errorf("regionio: %s: %w", name, err)
	}

	d, err := shard.NewDecoder(r.worldHeight, r.adapter,
		shard.WithHooks(r.opts.hooks),
		shard.WithLogger(r.opts.logger.With("name", name)))
	if err != nil {
		return nil, false, err
	}
	if !intact {
		r.opts.logger.Warn("region checksum mismatch", "name", name)
		d.MarkError()
	}

	if legacy {
		s, err = d.DecodeUnversioned(bytes.NewReader(raw))
	} else {
		s, err = d.Decode(bytes.NewReader(raw))
	}
	if err != nil {
		return nil, false, fmt.Errorf("regionio: %s: %w", name, err)
	}

	if d.HasError() {
		corrupt = true
		r.errored.Store(true)
		r.opts.metrics.RecordCorruption(k)
	}
	return s, corrupt, nil
}

// Write persists s under its modern name and removes any legacy blob.
func (r *IO[M]) Write(ctx context.Context, s *shard.Shard[M]) (err error) {
	start := time.Now()
	size := 0
	defer func() {
		r.opts.metrics.RecordWrite(size, time.Since(start), err)
	}()

	if r.closed.Load() {
		return ErrClosed
	}

	var buf bytes.Buffer
	if _, err = s.WriteTo(&buf); err != nil {
		return err
	}
	blob, err := Wrap(r.opts.codec, buf.Bytes())
	if err != nil {
		return err
	}
	size = len(blob)
	if err = r.opts.rc.WaitIO(ctx, size); err != nil {
		return err
	}

	k := s.Key()
	if err = r.store.Put(ctx, Name(k), blob); err != nil {
		return err
	}
	return r.store.Delete(ctx, LegacyName(k))
}

// Delete removes k under both names.
func (r *IO[M]) Delete(ctx context.Context, k gridkey.Key) error {
	var result *multierror.Error
	if err := r.store.Delete(ctx, Name(k)); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.store.Delete(ctx, LegacyName(k)); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Index returns the set of persisted shard keys under either name.
func (r *IO[M]) Index(ctx context.Context) (*roaring64.Bitmap, error) {
	names, err := r.store.List(ctx, "p")
	if err != nil {
		return nil, err
	}
	keys := roaring64.New()
	for _, name := range names {
		if k, _, ok := ParseName(name); ok {
			keys.Add(k.Uint64())
		}
	}
	return keys, nil
}

// Keys returns every persisted shard key.
func (r *IO[M]) Keys(ctx context.Context) ([]gridkey.Key, error) {
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]gridkey.Key, 0, idx.GetCardinality())
	it := idx.Iterator()
	for it.HasNext() {
		out = append(out, gridkey.FromUint64(it.Next()))
	}
	return out, nil
}

// Migrate rewrites legacy-only blobs under their modern name and drops
// legacy blobs already shadowed by a modern one. It returns the number of
// rewritten shards.
func (r *IO[M]) Migrate(ctx context.Context) (int, error) {
	names, err := r.store.List(ctx, "p")
	if err != nil {
		return 0, err
	}
	modern := roaring64.New()
	var legacy []gridkey.Key
	for _, name := range names {
		k, old, ok := ParseName(name)
		switch {
		case !ok:
		case old:
			legacy = append(legacy, k)
		default:
			modern.Add(k.Uint64())
		}
	}

	var (
		result   *multierror.Error
		migrated int
	)
	for _, k := range legacy {
		if err := ctx.Err(); err != nil {
			return migrated, multierror.Append(result, err).ErrorOrNil()
		}
		if modern.Contains(k.Uint64()) {
			if err := r.store.Delete(ctx, LegacyName(k)); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		s, err := r.Read(ctx, k)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("read %s: %w", LegacyName(k), err))
			continue
		}
		if err := r.Write(ctx, s); err != nil {
			result = multierror.Append(result, fmt.Errorf("write %s: %w", Name(k), err))
			continue
		}
		r.opts.logger.Info("migrated legacy region", "key", int64(k), "x", k.X(), "z", k.Z())
		migrated++
	}
	return migrated, result.ErrorOrNil()
}

// Close releases the backing store if it holds resources. Close is
// idempotent.
func (r *IO[M]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
