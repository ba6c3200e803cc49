// Package cache provides a process-wide read-through cache for values that
// are expensive to load and cheap to keep, such as trigger configuration.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches a fresh value
type Loader[T any] func(ctx context.Context) (T, error)

// ReadThrough holds one value with a TTL. Concurrent misses share a single
// in-flight load. Invalidate drops the value and detaches any load already
// in flight, so writers see their own change on the next Get.
type ReadThrough[T any] struct {
	mu         sync.RWMutex
	value      T
	expiresAt  time.Time
	valid      bool
	generation uint64

	ttl   time.Duration
	load  Loader[T]
	group singleflight.Group
	now   func() time.Time
}

// NewReadThrough creates a cache that calls load on a miss
func NewReadThrough[T any](ttl time.Duration, load Loader[T]) *ReadThrough[T] {
	return &ReadThrough[T]{ttl: ttl, load: load, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (c *ReadThrough[T]) WithClock(now func() time.Time) *ReadThrough[T] {
	c.now = now
	return c
}

// Get returns the cached value, loading it when missing or expired
func (c *ReadThrough[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.valid && c.now().Before(c.expiresAt) {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	// the load outlives a single caller's cancellation
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		v, err := c.load(loadCtx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.value = v
			c.valid = true
			c.expiresAt = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Invalidate drops the cached value
func (c *ReadThrough[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	c.value = zero
	c.valid = false
	c.generation++
}
