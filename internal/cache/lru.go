// Package cache implements the bounded, mtime-validated ETag and
// compressed-blob caches of spec §4.7 CacheStore: a generic LRU core with
// hit/miss/size accounting and single-flight coalescing of cold misses.
//
// Grounded on dgrr-http2's pooled-object style (bounded resource reuse)
// generalized to a doubly-linked-list LRU, the idiom fasthttp's own cache
// helpers and the wider Go ecosystem use (golang.org/x/sync/singleflight
// pattern) for coalescing concurrent misses on the same key.
package cache

import (
	"container/list"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// lru is a generic, mutex-protected, fixed-capacity LRU map. Not exported:
// ETagCache and CompressionCache wrap it with their own mtime-aware
// Get/Put semantics per spec §4.7.
type lru[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[K]*list.Element

	hits   uint64
	misses uint64

	inflight map[K]*call[V]
}

type call[V any] struct {
	wg    sync.WaitGroup
	value V
	err   error
}

func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	return &lru[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
		inflight: make(map[K]*call[V]),
	}
}

// peek returns the cached value for key and marks it most-recently-used,
// without touching hit/miss accounting: callers that apply their own
// staleness check (mtime, size) record the hit or miss themselves, via
// recordHit/recordMiss, only after that check decides whether the entry
// is actually usable (spec §4.7/§8: an entry present but stale counts as
// a miss, not a hit).
func (c *lru[K, V]) peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

func (c *lru[K, V]) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *lru[K, V]) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// put inserts or updates key, evicting the least-recently-used entry if
// the cache is at capacity and key is new.
func (c *lru[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, value: value})
	c.items[key] = el

	if c.capacity > 0 && c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
		}
	}
}

// delete removes key unconditionally.
func (c *lru[K, V]) delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *lru[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.hits = 0
	c.misses = 0
}

func (c *lru[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *lru[K, V]) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// coalesce runs fn for key at most once per concurrent burst: the first
// caller executes fn and shares the result with any caller that arrives
// while it is still running (spec §4.7: "at most one recomputation happens
// per (key, epoch)").
func (c *lru[K, V]) coalesce(key K, fn func() (V, error)) (V, error) {
	c.mu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		existing.wg.Wait()
		return existing.value, existing.err
	}
	cl := &call[V]{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.value, cl.err = fn()
	cl.wg.Done()

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return cl.value, cl.err
}
