// Package ratelimit implements the token-bucket RateLimiter of spec §4.9:
// one bucket per client identity, bounded population with LRU eviction,
// and an independent whitelist.
//
// Grounded on dgrr-http2's mutex-guarded map-of-state style, generalized
// to a time-based refill model; bucket bounding uses the same
// container/list-plus-map LRU idiom as internal/cache, with its own
// bookkeeping here (bounded map + eviction policy, not an error path).
package ratelimit

import (
	"container/list"
	"math"
	"sync"
	"time"
)

// DefaultMaxBuckets is the spec §4.9/§6 default.
const DefaultMaxBuckets = 10000

// Result is the outcome of TryAcquire.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a bounded, per-identity token bucket rate limiter.
type Limiter struct {
	mu sync.Mutex

	capacity float64
	rate     float64 // tokens per second

	maxBuckets int
	ll         *list.List
	elements   map[string]*list.Element
	buckets    map[string]*bucket

	whitelistMu sync.RWMutex
	whitelist   map[string]struct{}

	now func() time.Time
}

// New creates a Limiter refilling at rate tokens/sec up to capacity
// tokens, bounding bucket population at maxBuckets (0 = DefaultMaxBuckets).
func New(capacity, rate float64, maxBuckets int) *Limiter {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	return &Limiter{
		capacity:   capacity,
		rate:       rate,
		maxBuckets: maxBuckets,
		ll:         list.New(),
		elements:   make(map[string]*list.Element),
		buckets:    make(map[string]*bucket),
		whitelist:  make(map[string]struct{}),
		now:        time.Now,
	}
}

// TryAcquire attempts to consume one token for id, per spec §4.9.
func (l *Limiter) TryAcquire(id string) Result {
	if l.Whitelisted(id) {
		return Result{Allowed: true, Limit: int(l.capacity), Remaining: int(l.capacity)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreate(id)
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+l.rate*elapsed)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Result{
			Allowed:   true,
			Limit:     int(l.capacity),
			Remaining: int(math.Floor(b.tokens)),
		}
	}

	resetIn := time.Duration(0)
	if l.rate > 0 {
		resetIn = time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	}
	return Result{
		Allowed:   false,
		Limit:     int(l.capacity),
		Remaining: 0,
		ResetIn:   resetIn,
	}
}

// getOrCreate returns id's bucket, creating a full bucket on first use and
// evicting the least-recently-used bucket if the population would exceed
// maxBuckets. Must be called with l.mu held.
func (l *Limiter) getOrCreate(id string) *bucket {
	if el, ok := l.elements[id]; ok {
		l.ll.MoveToFront(el)
		return l.buckets[id]
	}

	b := &bucket{tokens: l.capacity, lastRefill: l.now()}
	el := l.ll.PushFront(id)
	l.elements[id] = el
	l.buckets[id] = b

	if l.ll.Len() > l.maxBuckets {
		oldest := l.ll.Back()
		if oldest != nil {
			evictedID := oldest.Value.(string)
			l.ll.Remove(oldest)
			delete(l.elements, evictedID)
			delete(l.buckets, evictedID)
		}
	}
	return b
}

// --- Whitelist ----------------------------------------------------------

func (l *Limiter) Whitelist(id string) {
	l.whitelistMu.Lock()
	defer l.whitelistMu.Unlock()
	l.whitelist[id] = struct{}{}
}

func (l *Limiter) Unwhitelist(id string) {
	l.whitelistMu.Lock()
	defer l.whitelistMu.Unlock()
	delete(l.whitelist, id)
}

func (l *Limiter) Whitelisted(id string) bool {
	l.whitelistMu.RLock()
	defer l.whitelistMu.RUnlock()
	_, ok := l.whitelist[id]
	return ok
}

// BucketCount returns the current number of tracked (non-whitelisted)
// client buckets, for metrics.
func (l *Limiter) BucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ll.Len()
}
