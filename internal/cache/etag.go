package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// StrongWeakThresholdBytes is the source heuristic (spec §9 open question:
// left fixed rather than made configurable, per the decision recorded in
// DESIGN.md) above which the ETag cache emits a weak tag instead of
// hashing the whole file.
const StrongWeakThresholdBytes = 100 * 1024 * 1024

// DefaultETagCacheEntries is the spec §4.7/§6 default capacity.
const DefaultETagCacheEntries = 10000

type etagEntry struct {
	value string
	mtime int64
	size  int64
}

// ETagCache computes and caches ETags for absolute file paths, invalidated
// whenever a lookup observes a different mtime than the cached one.
type ETagCache struct {
	lru *lru[string, etagEntry]
	// stat is overridable in tests so mtime/size can be faked without
	// touching the real filesystem.
	stat func(path string) (mtime int64, size int64, err error)
	open func(path string) (io.ReadCloser, error)
}

func NewETagCache(capacity int) *ETagCache {
	return &ETagCache{
		lru: newLRU[string, etagEntry](capacity),
		stat: func(path string) (int64, int64, error) {
			fi, err := os.Stat(path)
			if err != nil {
				return 0, 0, err
			}
			return fi.ModTime().UnixNano(), fi.Size(), nil
		},
		open: func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Get returns the ETag for path, computing and caching it on a cold miss
// or a stale mtime, per spec §4.7.
func (c *ETagCache) Get(path string) (string, error) {
	mtime, size, err := c.stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "etag: stat %s", path)
	}

	if e, ok := c.lru.peek(path); ok && e.mtime == mtime && e.size == size {
		c.lru.recordHit()
		return e.value, nil
	}
	c.lru.recordMiss()

	v, err := c.lru.coalesce(path, func() (etagEntry, error) {
		value, err := c.compute(path, mtime, size)
		if err != nil {
			return etagEntry{}, err
		}
		return etagEntry{value: value, mtime: mtime, size: size}, nil
	})
	if err != nil {
		return "", err
	}
	c.lru.put(path, v)
	return v.value, nil
}

func (c *ETagCache) compute(path string, mtime, size int64) (string, error) {
	if size > StrongWeakThresholdBytes {
		return fmt.Sprintf(`W/"%d-%d"`, size, mtime), nil
	}

	f, err := c.open(path)
	if err != nil {
		return "", errors.Wrapf(err, "etag: open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "etag: hash %s", path)
	}
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}

func (c *ETagCache) Clear()     { c.lru.clear() }
func (c *ETagCache) Size() int  { return c.lru.size() }
func (c *ETagCache) HitRate() float64 {
	hits, misses := c.lru.stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
func (c *ETagCache) Stats() (hits, misses uint64) { return c.lru.stats() }
