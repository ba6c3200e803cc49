package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNew(t *testing.T) {
	l := New(10, 20)

	if l == nil {
		t.Fatal("Expected limiter to not be nil")
	}
	if l.refillRate != 10 {
		t.Errorf("Expected refillRate 10, got %f", l.refillRate)
	}
	if l.maxTokens != 20 {
		t.Errorf("Expected maxTokens 20, got %f", l.maxTokens)
	}
}

func TestLimiter_Allow(t *testing.T) {
	l := New(10, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Errorf("Expected Allow() to return true on attempt %d", i)
		}
	}

	if l.Allow() {
		t.Error("Expected Allow() to return false when no tokens left")
	}
}

func TestLimiter_AllowWithRefill(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newWithClock(1, 1, clock.Now)

	if !l.Allow() {
		t.Error("Expected first Allow() to succeed")
	}
	if l.Allow() {
		t.Error("Expected second Allow() to fail")
	}

	clock.Advance(time.Second)
	if !l.Allow() {
		t.Error("Expected Allow() to succeed after refill")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newWithClock(0.5, 1, clock.Now)

	if got := l.RetryAfter(); got != 0 {
		t.Errorf("Expected no wait with a token available, got %v", got)
	}
	l.Allow()
	if got := l.RetryAfter(); got != 2*time.Second {
		t.Errorf("Expected 2s wait, got %v", got)
	}
	clock.Advance(time.Second)
	if got := l.RetryAfter(); got != time.Second {
		t.Errorf("Expected 1s wait, got %v", got)
	}
}

func TestLimiter_TokensDoNotExceedMax(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newWithClock(1000, 10, clock.Now)

	clock.Advance(time.Minute)
	if tokens := l.Tokens(); tokens > 10 {
		t.Errorf("Tokens exceeded max: %f > 10", tokens)
	}
}

func TestLimiter_ZeroRateDoesNotPanic(t *testing.T) {
	l := New(0, 2)

	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Error("Expected Allow() to fail with zero rate and no tokens")
	}
	if l.RetryAfter() <= 0 {
		t.Error("Expected a positive retry delay with zero rate")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := New(1000, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Allow()
				l.Tokens()
			}
		}()
	}
	wg.Wait()
}

func TestKeyed_SeparateBuckets(t *testing.T) {
	k := PerMinute(2)

	if !k.Allow("ana") || !k.Allow("ana") {
		t.Fatal("Expected the burst to be available")
	}
	if k.Allow("ana") {
		t.Error("Expected ana to be limited")
	}
	if !k.Allow("luis") {
		t.Error("Expected a separate bucket per key")
	}
	if k.Get("ana") != k.Get("ana") {
		t.Error("Expected the same limiter for the same key")
	}
}
