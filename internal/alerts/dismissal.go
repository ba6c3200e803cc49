package alerts

import (
	"sync"
	"time"
)

// DismissalTTL is how long a dismissed live alert stays hidden
const DismissalTTL = 24 * time.Hour

// DismissalCache maps live alert ids to the time they were dismissed.
// Expired entries are pruned on every read, so no sweeper goroutine is needed.
type DismissalCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewDismissalCache creates an empty cache with the standard TTL
func NewDismissalCache() *DismissalCache {
	return NewDismissalCacheWithClock(time.Now)
}

// NewDismissalCacheWithClock creates an empty cache reading time from now
func NewDismissalCacheWithClock(now func() time.Time) *DismissalCache {
	return &DismissalCache{
		entries: make(map[string]time.Time),
		ttl:     DismissalTTL,
		now:     now,
	}
}

// prune drops expired entries. Caller must hold mu.
func (c *DismissalCache) prune(now time.Time) {
	for id, at := range c.entries {
		if now.Sub(at) >= c.ttl {
			delete(c.entries, id)
		}
	}
}

// IsDismissed reports whether id was dismissed less than the TTL ago
func (c *DismissalCache) IsDismissed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(c.now())
	_, ok := c.entries[id]
	return ok
}

// Dismiss hides id until the TTL elapses
func (c *DismissalCache) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = c.now()
}

// Undismiss makes id visible again
func (c *DismissalCache) Undismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}

// Len returns the number of live dismissals
func (c *DismissalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(c.now())
	return len(c.entries)
}

// DismissalRegistry keeps one dismissal cache per viewer
type DismissalRegistry struct {
	mu     sync.Mutex
	caches map[string]*DismissalCache
	now    func() time.Time
}

// NewDismissalRegistry creates an empty registry
func NewDismissalRegistry(now func() time.Time) *DismissalRegistry {
	if now == nil {
		now = time.Now
	}
	return &DismissalRegistry{
		caches: make(map[string]*DismissalCache),
		now:    now,
	}
}

// For returns the cache of viewer, creating it on first use
func (r *DismissalRegistry) For(viewer string) *DismissalCache {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.caches[viewer]
	if !ok {
		c = NewDismissalCacheWithClock(r.now)
		r.caches[viewer] = c
	}
	return c
}
