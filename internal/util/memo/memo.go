// Package memo provides a small time-bounded cache for expensive describe
// calls. Concurrent misses for the same cache collapse into one fetch.
package memo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes a single value of type T for a fixed TTL.
// The zero value is not usable; call New.
type Cache[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	value   T
	fetched time.Time
	valid   bool
	gen     uint64
}

// New returns an empty cache whose entries expire after ttl.
// A ttl of zero disables caching: every Get fetches.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value, calling fetch when the cache is empty,
// expired or fresh is true. Errors are returned but never cached.
func (c *Cache[T]) Get(ctx context.Context, fresh bool, fetch func(ctx context.Context) (T, error)) (T, error) {
	if !fresh {
		if v, ok := c.cached(); ok {
			return v, nil
		}
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("value", func() (any, error) {
		if !fresh {
			if v, ok := c.cached(); ok {
				return v, nil
			}
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		// An Invalidate or Set during the fetch wins over this result.
		if c.gen == gen {
			c.value, c.fetched, c.valid = v, c.now(), true
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Set stores v as the current value.
func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.value, c.fetched, c.valid = v, c.now(), true
}

// Invalidate drops the cached value.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	var zero T
	c.value, c.valid = zero, false
}

func (c *Cache[T]) cached() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.ttl <= 0 || c.now().Sub(c.fetched) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}
