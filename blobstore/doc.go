// Package blobstore is the byte storage under region files.
//
// A Store holds whole blobs addressed by flat names. Put must be atomic, so a
// crash never leaves a half-written region visible under its final name.
//
// # Implementations
//
//   - LocalStore: one directory; writes go through a temp dir, fsync and rename
//   - MemoryStore: in-process map for tests
//   - CachingStore: read-through LRU over a remote store
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
