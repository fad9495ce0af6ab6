package gridstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/hupe1980/gridstore/burst"
	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/internal/cache"
	"github.com/hupe1980/gridstore/internal/flock"
	"github.com/hupe1980/gridstore/internal/hyperlock"
	"github.com/hupe1980/gridstore/internal/resource"
	"github.com/hupe1980/gridstore/regionio"
	"github.com/hupe1980/gridstore/section"
	"github.com/hupe1980/gridstore/shard"
	"golang.org/x/sync/semaphore"
)

// LockName is the lease file OpenDir places in the store directory.
const LockName = "LOCK"

// Store is a persistent, shard-indexed cache of cells. Shards load on
// first access, are marked idle by Trim and are written back by Unload,
// SaveAll and Close.
//
// All methods are safe for concurrent use.
type Store[M any] struct {
	opts     options
	manifest *Manifest
	adapter  shard.Adapter[M]
	io       *regionio.IO[M]
	locks    *hyperlock.Lock
	pool     *burst.Pool
	ownsPool bool
	rc       *resource.Controller
	cached   *blobstore.CachingStore

	trimGate   *semaphore.Weighted
	unloadGate *semaphore.Weighted

	// mu guards loaded, lastUse, pending and known.
	mu      sync.Mutex
	loaded  map[gridkey.Key]*shard.Shard[M]
	lastUse map[gridkey.Key]int64
	pending *roaring64.Bitmap
	known   *roaring64.Bitmap

	adjustedIdle atomic.Int64
	closed       atomic.Bool

	stopMaintenance context.CancelFunc
	maintenanceDone chan struct{}
}

// Open opens the store kept in blobs, creating its manifest on first use.
// adapter decodes and encodes the section payload M.
//
// Example:
//
//	blobs, _ := blobstore.NewLocalStore(dir)
//	store, err := gridstore.Open(ctx, blobs, section.NewAdapter(nil),
//	    gridstore.WithWorldHeight(384),
//	    gridstore.WithMaintenance(time.Second, time.Minute, 1024),
//	)
func Open[M any](ctx context.Context, blobs blobstore.Store, adapter shard.Adapter[M], optFns ...Option) (*Store[M], error) {
	o := applyOptions(optFns)
	if blobs == nil || adapter == nil {
		return nil, fmt.Errorf("%w: nil blob store or adapter", ErrInvalidArgument)
	}
	if o.lockCapacity <= 0 || o.gateCapacity <= 0 {
		return nil, fmt.Errorf("%w: lock capacity %d, gate capacity %d", ErrInvalidArgument, o.lockCapacity, o.gateCapacity)
	}
	if o.resources == nil {
		o.resources = resource.NewController(resource.Config{})
	}

	if o.lease != nil {
		if err := o.lease.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("acquire lease: %w", err)
		}
	}

	s, err := open(ctx, blobs, adapter, o)
	if err != nil {
		if o.lease != nil {
			_ = o.lease.Release(ctx)
		}
		return nil, err
	}

	s.startMaintenance()

	s.opts.logger.InfoContext(ctx, "store opened",
		"id", s.manifest.ID,
		"world_height", s.manifest.WorldHeight,
		"compression", s.io.Codec().String(),
		"known_shards", s.known.GetCardinality(),
	)
	return s, nil
}

func open[M any](ctx context.Context, blobs blobstore.Store, adapter shard.Adapter[M], o options) (*Store[M], error) {
	m, err := resolveManifest(ctx, blobs, &o)
	if err != nil {
		return nil, err
	}

	var cached *blobstore.CachingStore
	if o.cacheBytes > 0 {
		cached = blobstore.NewCachingStore(blobs, cache.NewLRU(o.cacheBytes, o.resources))
		blobs = cached
	}

	rio, err := regionio.New(blobs, o.worldHeight, adapter,
		regionio.WithCompression(o.compression),
		regionio.WithLogger(o.logger.Logger),
		regionio.WithResourceController(o.resources),
		regionio.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	locks, err := hyperlock.New(o.lockCapacity,
		hyperlock.WithLogger(o.logger.Logger),
		hyperlock.WithErrorHandler(o.onError),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	known, err := rio.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("index shards: %w", err)
	}

	pool, owns := o.pool, false
	if pool == nil {
		pool = burst.NewPool("gridstore-io",
			burst.WithWorkers(o.workers),
			burst.WithLogger(o.logger.Logger),
			burst.WithErrorHandler(o.onError),
		)
		owns = true
	}

	return &Store[M]{
		opts:       o,
		manifest:   m,
		adapter:    adapter,
		io:         rio,
		locks:      locks,
		pool:       pool,
		ownsPool:   owns,
		rc:         o.resources,
		cached:     cached,
		trimGate:   semaphore.NewWeighted(o.gateCapacity),
		unloadGate: semaphore.NewWeighted(o.gateCapacity),
		loaded:     make(map[gridkey.Key]*shard.Shard[M]),
		lastUse:    make(map[gridkey.Key]int64),
		pending:    roaring64.New(),
		known:      known,
	}, nil
}

// OpenDir opens a store of typed sections in a local directory. Unless
// WithLease is given, the directory is guarded by a LOCK file so a second
// open fails with flock.ErrLocked while the first is alive.
func OpenDir(ctx context.Context, dir string, optFns ...Option) (*Store[*section.Section], error) {
	o := applyOptions(optFns)

	local, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	if o.lease == nil {
		optFns = append(optFns, WithLease(flock.New(filepath.Join(dir, LockName))))
	}
	return Open[*section.Section](ctx, local, section.NewAdapter(o.registry), optFns...)
}

// Manifest returns the manifest the store was opened with.
func (s *Store[M]) Manifest() Manifest { return *s.manifest }

// WorldHeight returns the column height in blocks.
func (s *Store[M]) WorldHeight() int { return s.opts.worldHeight }

// Adapter returns the section adapter.
func (s *Store[M]) Adapter() shard.Adapter[M] { return s.adapter }

// RegionIO returns the region reader and writer behind the store.
func (s *Store[M]) RegionIO() *regionio.IO[M] { return s.io }

// Closed reports whether Close was called.
func (s *Store[M]) Closed() bool { return s.closed.Load() }

func (s *Store[M]) now() int64 { return s.opts.clock().UnixMilli() }

func (s *Store[M]) startMaintenance() {
	m := s.opts.maintenance
	if m == nil || m.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopMaintenance = cancel
	s.maintenanceDone = make(chan struct{})
	go s.maintain(ctx, *m)
}

func (s *Store[M]) maintain(ctx context.Context, m maintenanceConfig) {
	defer close(s.maintenanceDone)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maintenancePass(ctx, m)
		}
	}
}

// maintenancePass runs one Trim and Unload unless another pass still
// holds the background slot.
func (s *Store[M]) maintenancePass(ctx context.Context, m maintenanceConfig) {
	if !s.rc.TryAcquireBackground() {
		return
	}
	defer s.rc.ReleaseBackground()

	if err := s.Trim(ctx, m.baseIdle, m.limit); err != nil {
		s.reportMaintenance(ctx, "trim", err)
		return
	}
	if _, err := s.Unload(ctx, m.limit); err != nil {
		s.reportMaintenance(ctx, "unload", err)
	}
}

func (s *Store[M]) reportMaintenance(ctx context.Context, pass string, err error) {
	if ctx.Err() != nil || s.closed.Load() {
		return
	}
	s.opts.logger.WarnContext(ctx, "maintenance pass failed", "pass", pass, "error", err)
	s.opts.onError(err)
}

func (s *Store[M]) haltMaintenance() {
	if s.stopMaintenance == nil {
		return
	}
	s.stopMaintenance()
	<-s.maintenanceDone
}
