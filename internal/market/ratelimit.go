package market

import (
	"sync"
	"time"
)

// TokenBucket caps the outbound quote request rate. Yahoo throttles
// aggressively on burst traffic, so the poller and ad-hoc lookups share
// one bucket.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	ratePerS   float64
	burst      float64
	lastRefill time.Time
	disabled   bool
}

func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if perMinute <= 0 {
		return &TokenBucket{disabled: true}
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucket{
		tokens:     float64(burst),
		ratePerS:   float64(perMinute) / 60.0,
		burst:      float64(burst),
		lastRefill: time.Now(),
	}
}

func (t *TokenBucket) Allow() bool {
	if t == nil || t.disabled {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refillLocked()
	if t.tokens >= 1 {
		t.tokens -= 1
		return true
	}
	return false
}

func (t *TokenBucket) WaitForToken(maxWait time.Duration) bool {
	if t == nil || t.disabled {
		return true
	}
	deadline := time.Now().Add(maxWait)
	for {
		if t.Allow() {
			return true
		}
		now := time.Now()
		if now.After(deadline) {
			return false
		}
		sleepFor := t.timeUntilNext()
		if remaining := deadline.Sub(now); sleepFor > remaining {
			sleepFor = remaining
		}
		if sleepFor > 0 {
			time.Sleep(sleepFor)
		}
	}
}

func (t *TokenBucket) timeUntilNext() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refillLocked()
	if t.tokens >= 1 || t.ratePerS <= 0 {
		return 0
	}
	need := 1 - t.tokens
	return time.Duration(need / t.ratePerS * float64(time.Second))
}

func (t *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(t.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	t.tokens += elapsed * t.ratePerS
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
	t.lastRefill = now
}
