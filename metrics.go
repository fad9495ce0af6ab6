package gridstore

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/gridstore/gridkey"
	"github.com/hupe1980/gridstore/regionio"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// The region IO methods are inherited from regionio.Metrics and receive
// every blob read and write.
type MetricsCollector interface {
	regionio.Metrics

	// RecordLoad is called after a shard enters memory. created is true
	// when a new empty shard was made.
	RecordLoad(duration time.Duration, created bool, err error)

	// RecordTrim is called after each trim pass with the number of shards
	// marked for unload.
	RecordTrim(marked int, duration time.Duration)

	// RecordUnload is called after each unload pass.
	RecordUnload(unloaded int, duration time.Duration)

	// RecordFlush is called after SaveAll and Close persist loaded shards.
	RecordFlush(count, failed int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCorruption(gridkey.Key)          {}
func (NoopMetricsCollector) RecordLoad(time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordTrim(int, time.Duration)         {}
func (NoopMetricsCollector) RecordUnload(int, time.Duration)       {}
func (NoopMetricsCollector) RecordFlush(int, int, time.Duration)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount      atomic.Int64
	ReadBytes      atomic.Int64
	ReadErrors     atomic.Int64
	WriteCount     atomic.Int64
	WriteBytes     atomic.Int64
	WriteErrors    atomic.Int64
	CorruptShards  atomic.Int64
	LoadCount      atomic.Int64
	CreateCount    atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	TrimCount      atomic.Int64
	MarkedCount    atomic.Int64
	UnloadCount    atomic.Int64
	UnloadedShards atomic.Int64
	FlushCount     atomic.Int64
	FlushFailed    atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, _ time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(int64(bytes))
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordCorruption implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCorruption(gridkey.Key) {
	b.CorruptShards.Add(1)
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, created bool, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if created {
		b.CreateCount.Add(1)
	}
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordTrim implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrim(marked int, _ time.Duration) {
	b.TrimCount.Add(1)
	b.MarkedCount.Add(int64(marked))
}

// RecordUnload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnload(unloaded int, _ time.Duration) {
	b.UnloadCount.Add(1)
	b.UnloadedShards.Add(int64(unloaded))
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(count, failed int, _ time.Duration) {
	b.FlushCount.Add(int64(count))
	b.FlushFailed.Add(int64(failed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:      b.ReadCount.Load(),
		ReadBytes:      b.ReadBytes.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		WriteCount:     b.WriteCount.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		CorruptShards:  b.CorruptShards.Load(),
		LoadCount:      b.LoadCount.Load(),
		CreateCount:    b.CreateCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadAvgNanos:   b.getAvgLoadNanos(),
		TrimCount:      b.TrimCount.Load(),
		MarkedCount:    b.MarkedCount.Load(),
		UnloadCount:    b.UnloadCount.Load(),
		UnloadedShards: b.UnloadedShards.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushFailed:    b.FlushFailed.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadBytes      int64
	ReadErrors     int64
	WriteCount     int64
	WriteBytes     int64
	WriteErrors    int64
	CorruptShards  int64
	LoadCount      int64
	CreateCount    int64
	LoadErrors     int64
	LoadAvgNanos   int64
	TrimCount      int64
	MarkedCount    int64
	UnloadCount    int64
	UnloadedShards int64
	FlushCount     int64
	FlushFailed    int64
}
