package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gridstore/internal/resource"
)

// LRU is a byte-bounded least recently used cache. Cached slices are
// shared and must not be modified.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List
	rc       *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   string
	value []byte
}

// NewLRU returns a cache holding at most capacity bytes. A non-nil rc is
// charged for every cached byte.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		rc:       rc,
	}
}

// Get returns the cached value for key.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(el)
		return el.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches value under key. Values larger than the capacity, or denied
// by the memory budget, are not cached.
func (c *LRU) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	if n > c.capacity {
		return
	}
	for c.size+n > c.capacity {
		el := c.order.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
	}
	if !c.rc.TryAcquireMemory(n) {
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
	c.size += n
}

// Invalidate drops key.
func (c *LRU) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Purge drops every entry.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Back(); el != nil; el = c.order.Back() {
		c.removeElement(el)
	}
}

func (c *LRU) removeElement(el *list.Element) {
	c.order.Remove(el)
	e := el.Value.(*entry)
	delete(c.items, e.key)
	n := int64(len(e.value))
	c.size -= n
	c.rc.ReleaseMemory(n)
}

// Len returns the number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
