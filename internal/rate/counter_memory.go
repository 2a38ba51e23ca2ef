package rate

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryBuckets bounds the number of live windows a MemoryCounter keeps.
const DefaultMemoryBuckets = 100_000

type window struct {
	count   int64
	expires time.Time
}

// MemoryCounter keeps windows in process. Suitable for a single replica and
// for tests; the least recently touched bucket is evicted at capacity.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, window]
	now     func() time.Time
}

// NewMemoryCounter returns a counter holding at most size buckets. now may be
// nil to use time.Now.
func NewMemoryCounter(size int, now func() time.Time) (*MemoryCounter, error) {
	if size <= 0 {
		size = DefaultMemoryBuckets
	}
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, window](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCounter{buckets: cache, now: now}, nil
}

// Increment implements Counter.
func (c *MemoryCounter) Increment(_ context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.buckets.Get(key)
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(win)}
	}
	w.count++
	c.buckets.Add(key, w)
	return w.count, w.expires.Sub(now), nil
}

// Clear implements Counter.
func (c *MemoryCounter) Clear(context.Context) error {
	c.mu.Lock()
	c.buckets.Purge()
	c.mu.Unlock()
	return nil
}
