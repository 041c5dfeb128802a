package cache

// DefaultCompressionCacheEntries and DefaultMaxCacheFileBytes are the
// spec §4.7/§6 defaults for the compressed-blob cache.
const (
	DefaultCompressionCacheEntries = 1000
	DefaultMaxCacheFileBytes       = 1 * 1024 * 1024
)

type compressedEntry struct {
	data  []byte
	mtime int64
	size  int64
}

// CompressionCache stores compressed bytes for files up to MaxFileBytes;
// larger files are compressed on every request but never cached, per spec
// §4.7.
type CompressionCache struct {
	lru          *lru[string, compressedEntry]
	MaxFileBytes int64
}

func NewCompressionCache(capacity int, maxFileBytes int64) *CompressionCache {
	return &CompressionCache{
		lru:          newLRU[string, compressedEntry](capacity),
		MaxFileBytes: maxFileBytes,
	}
}

// Get returns cached compressed bytes for key if present and still valid
// for the given mtime/size. The cache compresses nothing itself: on a miss
// the caller compresses (via internal/compress) and stores the result with
// Put under the same key.
func (c *CompressionCache) Get(path string, mtime, size int64) ([]byte, bool) {
	e, ok := c.lru.peek(path)
	if !ok || e.mtime != mtime || e.size != size {
		c.lru.recordMiss()
		return nil, false
	}
	c.lru.recordHit()
	return e.data, true
}

// Put stores data for path if size is within MaxFileBytes; larger payloads
// are silently not cached (the caller should still serve the compressed
// bytes once).
func (c *CompressionCache) Put(path string, data []byte, mtime, size int64) {
	if size > c.MaxFileBytes {
		return
	}
	c.lru.put(path, compressedEntry{data: data, mtime: mtime, size: size})
}

// Coalesce runs compute at most once per concurrent burst for path,
// sharing the result with any caller that arrives while it is in flight.
func (c *CompressionCache) Coalesce(path string, compute func() ([]byte, error)) ([]byte, error) {
	e, err := c.lru.coalesce(path, func() (compressedEntry, error) {
		data, err := compute()
		return compressedEntry{data: data}, err
	})
	return e.data, err
}

func (c *CompressionCache) Clear()    { c.lru.clear() }
func (c *CompressionCache) Size() int { return c.lru.size() }
func (c *CompressionCache) HitRate() float64 {
	hits, misses := c.lru.stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
func (c *CompressionCache) Stats() (hits, misses uint64) { return c.lru.stats() }
