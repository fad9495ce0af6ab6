package gridstore

import (
	"time"
)

// Stats is a point-in-time view of the store.
type Stats struct {
	ID             string        `json:"id"`
	WorldHeight    int           `json:"world_height"`
	Compression    string        `json:"compression"`
	LoadedShards   int           `json:"loaded_shards"`
	PendingUnload  int           `json:"pending_unload"`
	KnownShards    uint64        `json:"known_shards"`
	AdjustedIdle   time.Duration `json:"adjusted_idle_ns"`
	LockEntries    int           `json:"lock_entries"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	IOBytes        int64         `json:"io_bytes"`
	CorruptionSeen bool          `json:"corruption_seen"`
	Closed         bool          `json:"closed"`
}

// LoadedShardCount returns the number of shards in memory.
func (s *Store[M]) LoadedShardCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loaded)
}

// PendingUnloadCount returns the number of shards marked by Trim and not
// yet unloaded or touched.
func (s *Store[M]) PendingUnloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.pending.GetCardinality())
}

// AdjustedIdleDuration returns the idle duration computed by the last Trim.
func (s *Store[M]) AdjustedIdleDuration() time.Duration {
	return time.Duration(s.adjustedIdle.Load())
}

// Stats returns a snapshot of the store. CorruptionSeen reports whether
// any read since the previous call found corrupt data, and clears it.
func (s *Store[M]) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		ID:            s.manifest.ID,
		WorldHeight:   s.opts.worldHeight,
		Compression:   s.io.Codec().String(),
		LoadedShards:  len(s.loaded),
		PendingUnload: int(s.pending.GetCardinality()),
		KnownShards:   s.known.GetCardinality(),
	}
	s.mu.Unlock()

	st.AdjustedIdle = s.AdjustedIdleDuration()
	st.LockEntries = s.locks.Len()
	if s.cached != nil {
		st.CacheHits, st.CacheMisses = s.cached.Stats()
	}
	st.IOBytes = s.rc.IOBytes()
	st.CorruptionSeen = s.io.HasError()
	st.Closed = s.closed.Load()
	return st
}
