// Package gridstore is a persistent, shard-indexed store for sparse 3D grid
// data, such as block-level annotations of a voxel world.
//
// The world is cut into columns. A cell is a 16x16 block column made of
// 16 block tall sections. A shard is a fixed 32x32 grid of cells and the
// unit of loading and persistence. Shards load on first access, are marked
// idle by Trim and are written back by Unload, SaveAll and Close. One shard
// is one region blob in a blobstore.Store.
//
// # Quick Start
//
// Local directory:
//
//	ctx := context.Background()
//	store, _ := gridstore.OpenDir(ctx, "./world", gridstore.WithWorldHeight(384))
//	defer store.Close()
//
//	_ = store.Set(ctx, 120, 64, -37, "ore")
//	v, ok, _ := gridstore.Get[string](ctx, store, 120, 64, -37)
//
// Remote store with a read cache:
//
//	blobs := s3.NewStore(client, "my-bucket", s3.WithPrefix("world/"))
//	lease := s3.NewLease(ddb, "gridstore-leases", "world", hostname, time.Minute)
//	store, _ := gridstore.Open(ctx, blobs, section.NewAdapter(nil),
//	    gridstore.WithLease(lease),
//	    gridstore.WithCache(256<<20),
//	)
//
// # Coordinates
//
// Value operations (Set, Get, Remove) take block coordinates. Cell
// operations (GetCell, DeleteCell, ForEachCell, flags) take cell
// coordinates, a block coordinate shifted right by 4. HasShard takes shard
// coordinates, a cell coordinate shifted right by 5. Heights run from 0 to
// the world height; values outside it are ignored.
//
// # Idle Eviction
//
//	// every few seconds
//	_ = store.Trim(ctx, time.Minute, 1024)
//	n, _ := store.Unload(ctx, 1024)
//
// Trim marks shards untouched for the idle duration. Above the shard limit
// the idle duration shrinks, see AdjustIdleDuration. Unload writes back the
// marked shards nobody is using. WithMaintenance runs both on a ticker.
//
// # Failure Handling
//
// Loads that fail are logged, reported to the handler set with
// WithErrorHandler and retried until the store closes. A region that
// exists but cannot be read is replaced by an empty shard. A damaged cell
// inside a readable region is skipped while the rest of the shard loads.
package gridstore
