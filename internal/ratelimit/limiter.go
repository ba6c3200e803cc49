package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a new rate limiter with the specified rate (requests per second)
// and burst capacity (maximum tokens that can accumulate)
func New(ratePerSecond float64, burstCapacity int) *Limiter {
	return newWithClock(ratePerSecond, burstCapacity, time.Now)
}

func newWithClock(ratePerSecond float64, burstCapacity int, now func() time.Time) *Limiter {
	return &Limiter{
		tokens:     float64(burstCapacity),
		maxTokens:  float64(burstCapacity),
		refillRate: ratePerSecond,
		lastRefill: now(),
		now:        now,
	}
}

// refill adds tokens based on elapsed time since last refill
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Allow checks if a request can proceed immediately
// Returns true and consumes a token if available, false otherwise
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter returns how long until the next token is available
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	if l.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}

// Tokens returns the current number of available tokens (approximate)
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// Keyed holds one limiter per key, e.g. per user
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	burst    int
	now      func() time.Time
}

// NewKeyed creates a keyed limiter; every key gets its own bucket
func NewKeyed(ratePerSecond float64, burstCapacity int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*Limiter),
		rate:     ratePerSecond,
		burst:    burstCapacity,
		now:      time.Now,
	}
}

// PerMinute creates a keyed limiter allowing n requests per minute with a burst of n
func PerMinute(n int) *Keyed {
	return NewKeyed(float64(n)/60, n)
}

// Get returns the limiter of key, creating it on first use
func (k *Keyed) Get(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = newWithClock(k.rate, k.burst, k.now)
		k.limiters[key] = l
	}
	return l
}

// Allow consumes a token from key's bucket
func (k *Keyed) Allow(key string) bool {
	return k.Get(key).Allow()
}
