package gridstore

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/hupe1980/gridstore/burst"
	"github.com/hupe1980/gridstore/internal/compress"
	"github.com/hupe1980/gridstore/internal/resource"
	"github.com/hupe1980/gridstore/section"
)

const (
	// DefaultWorldHeight is the column height used when none is configured
	// and no manifest exists.
	DefaultWorldHeight = 256

	// DefaultCapacity sizes both the shard lock cache and the access gate.
	DefaultCapacity = 32767

	// MinIdle is the floor of the adjusted idle duration.
	MinIdle = 4 * time.Second

	stallInterval = 5 * time.Second
)

// Lease guards single-process ownership of a store. flock.Lock and the
// DynamoDB lease in blobstore/s3 both implement it.
type Lease interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type maintenanceConfig struct {
	interval time.Duration
	baseIdle time.Duration
	limit    int
}

type options struct {
	worldHeight    int
	heightSet      bool
	lockCapacity   int
	gateCapacity   int64
	logger         *Logger
	onError        func(error)
	metrics        MetricsCollector
	clock          func() time.Time
	pool           *burst.Pool
	workers        int
	retainSlice    func(reflect.Type) bool
	lease          Lease
	maintenance    *maintenanceConfig
	compression    compress.Codec
	compressionSet bool
	resources      *resource.Controller
	cacheBytes     int64
	registry       *section.Registry
}

// Option configures Open and OpenDir.
type Option func(*options)

// WithWorldHeight sets the column height in blocks. It must be a multiple
// of 16 between 16 and 4080. A store reopened with a different height than
// it was created with fails with ErrIncompatibleFormat.
func WithWorldHeight(h int) Option {
	return func(o *options) {
		o.worldHeight = h
		o.heightSet = true
	}
}

// WithLockCapacity sizes the per-shard lock cache.
func WithLockCapacity(n int) Option {
	return func(o *options) {
		o.lockCapacity = n
	}
}

// WithGateCapacity sets the permit count of the trim and unload gates.
func WithGateCapacity(n int64) Option {
	return func(o *options) {
		o.gateCapacity = n
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := gridstore.NewJSONLogger(slog.LevelInfo)
//	store, _ := gridstore.OpenDir(ctx, dir, gridstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithErrorHandler receives every error the store reports while retrying
// or falling back, in addition to the log line.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithClock replaces time.Now for idle accounting.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithBurstPool shares an existing pool for loads and persistence. The
// store does not close a shared pool.
func WithBurstPool(p *burst.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithWorkers sizes the store's own burst pool.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRetainSlice installs a policy that keeps value kinds alive through
// DeleteCellSlice.
func WithRetainSlice(fn func(kind reflect.Type) bool) Option {
	return func(o *options) {
		o.retainSlice = fn
	}
}

// WithLease guards the store with l. OpenDir uses a LOCK file lease when
// none is given.
func WithLease(l Lease) Option {
	return func(o *options) {
		o.lease = l
	}
}

// WithMaintenance runs Trim(baseIdle, limit) then Unload(limit) every
// interval until Close.
func WithMaintenance(interval, baseIdle time.Duration, limit int) Option {
	return func(o *options) {
		o.maintenance = &maintenanceConfig{
			interval: interval,
			baseIdle: baseIdle,
			limit:    limit,
		}
	}
}

// WithCompression selects the codec for written regions.
func WithCompression(c compress.Codec) Option {
	return func(o *options) {
		o.compression = c
		o.compressionSet = true
	}
}

// WithResourceController shares IO and maintenance budgets across stores.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithCache puts a read-through blob cache of maxBytes in front of the
// backing store. Useful for remote stores.
func WithCache(maxBytes int64) Option {
	return func(o *options) {
		o.cacheBytes = maxBytes
	}
}

// WithRegistry sets the value registry OpenDir builds its section
// adapter from.
func WithRegistry(r *section.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		worldHeight:  DefaultWorldHeight,
		lockCapacity: DefaultCapacity,
		gateCapacity: DefaultCapacity,
		logger:       NoopLogger(),
		onError:      func(error) {},
		metrics:      NoopMetricsCollector{},
		clock:        time.Now,
		compression:  compress.LZ4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.onError == nil {
		o.onError = func(error) {}
	}
	return o
}
