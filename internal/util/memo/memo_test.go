package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache[int], *clock) {
	clk := &clock{t: time.Unix(1700000000, 0)}
	c := New[int](ttl)
	c.now = clk.now
	return c, clk
}

func counter(n *atomic.Int32) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		return int(n.Add(1)), nil
	}
}

func TestCache_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("second get is served from cache", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestCache(time.Minute)
		var calls atomic.Int32

		v, err := c.Get(ctx, false, counter(&calls))
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		v, err = c.Get(ctx, false, counter(&calls))
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fresh bypasses the cache", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestCache(time.Minute)
		var calls atomic.Int32

		_, _ = c.Get(ctx, false, counter(&calls))
		v, err := c.Get(ctx, true, counter(&calls))
		require.NoError(t, err)
		assert.Equal(t, 2, v)

		v, _ = c.Get(ctx, false, counter(&calls))
		assert.Equal(t, 2, v, "fresh result replaces the cached one")
	})

	t.Run("expired entries are refetched", func(t *testing.T) {
		t.Parallel()
		c, clk := newTestCache(time.Minute)
		var calls atomic.Int32

		_, _ = c.Get(ctx, false, counter(&calls))
		clk.advance(time.Minute)
		v, _ := c.Get(ctx, false, counter(&calls))
		assert.Equal(t, 2, v)
	})

	t.Run("zero ttl never caches", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestCache(0)
		var calls atomic.Int32

		_, _ = c.Get(ctx, false, counter(&calls))
		_, _ = c.Get(ctx, false, counter(&calls))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestCache(time.Minute)
		boom := errors.New("boom")

		_, err := c.Get(ctx, false, func(context.Context) (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)

		v, err := c.Get(ctx, false, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})
}

func TestCache_InvalidateAndSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32

	_, _ = c.Get(ctx, false, counter(&calls))
	c.Invalidate()
	v, _ := c.Get(ctx, false, counter(&calls))
	assert.Equal(t, 2, v)

	c.Set(42)
	v, _ = c.Get(ctx, false, counter(&calls))
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ConcurrentMissesCollapse(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 5, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Get(context.Background(), false, fetch)
		}()
	}

	// Let every goroutine reach the single-flight group before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 5, r)
	}
}
