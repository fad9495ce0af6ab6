package blobstore

import (
	"context"
	"io"

	"github.com/hupe1980/gridstore/internal/cache"
	"golang.org/x/sync/errgroup"
)

// CachingStore adds a read-through LRU in front of a slower Store.
// Writes and deletes invalidate the cached entry.
type CachingStore struct {
	inner Store
	cache *cache.LRU
}

// NewCachingStore wraps inner with c.
func NewCachingStore(inner Store, c *cache.LRU) *CachingStore {
	return &CachingStore{inner: inner, cache: c}
}

// Inner returns the wrapped store.
func (s *CachingStore) Inner() Store { return s.inner }

func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		return data, nil
	}
	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(name, data)
	return data, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) Exists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.cache.Get(name); ok {
		return true, nil
	}
	return s.inner.Exists(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Prefetch loads names into the cache in parallel. Missing blobs are
// skipped.
func (s *CachingStore) Prefetch(ctx context.Context, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, name := range names {
		g.Go(func() error {
			if _, err := s.Get(ctx, name); err != nil && !isNotFound(err) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close purges the cache and closes the inner store when it is an
// io.Closer.
func (s *CachingStore) Close() error {
	s.cache.Purge()
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) { return s.cache.Stats() }
