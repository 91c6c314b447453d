package ratelimit

import (
	"sync"
	"time"
)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket holds up to capacity tokens and refills capacity tokens every
// period, continuously.
//
// Tokens are tracked in fixed-point units so that sub-token refills do not
// accumulate float error: one token is period.Nanoseconds() units and each
// elapsed nanosecond adds capacity units.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity    int64
	unitsPerTok int64
	maxUnits    int64

	available int64
	last      time.Time
}

// NewTokenBucket returns a full bucket. A non-positive capacity or period
// yields a bucket that rejects every request.
func NewTokenBucket(clock Clock, capacity int64, period time.Duration) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	unitsPerTok := period.Nanoseconds()
	if unitsPerTok < 0 {
		unitsPerTok = 0
	}
	maxUnits := mulSaturating(capacity, unitsPerTok)
	return &TokenBucket{
		clock:       clock,
		capacity:    capacity,
		unitsPerTok: unitsPerTok,
		maxUnits:    maxUnits,
		available:   maxUnits,
		last:        clock.Now(),
	}
}

// NewPerSecond is shorthand for a bucket with burst == rate.
func NewPerSecond(clock Clock, rate int64) *TokenBucket {
	return NewTokenBucket(clock, rate, time.Second)
}

// Allow consumes tokens if available. tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if tokens <= 0 {
		return true
	}
	if b.capacity == 0 || b.unitsPerTok == 0 {
		return false
	}

	cost := mulSaturating(tokens, b.unitsPerTok)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now
	if elapsed <= 0 || b.available >= b.maxUnits {
		b.available = min(b.available, b.maxUnits)
		return
	}

	need := b.maxUnits - b.available
	if elapsed >= need/b.capacity+1 {
		b.available = b.maxUnits
		return
	}
	b.available = min(b.available+elapsed*b.capacity, b.maxUnits)
}

func mulSaturating(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > maxInt64/b {
		return maxInt64
	}
	return a * b
}
