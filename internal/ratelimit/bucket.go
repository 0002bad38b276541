package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is one identity's token bucket.
type bucket struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	dead bool
}

// TokenBucket is a stricter alternative to FixedWindow with the same contract.
// Each key holds up to capacity tokens, refilled evenly across period, so
// no boundary burst beyond capacity is possible.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	now     Clock
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates a token-bucket limiter with capacity tokens per period.
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*bucket),
		every:   rate.Every(period / time.Duration(capacity)),
		burst:   capacity,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (b *TokenBucket) WithClock(now Clock) *TokenBucket {
	b.now = now
	return b
}

func (b *TokenBucket) bucket(key string) *bucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.buckets[key]
	if !ok {
		e = &bucket{lim: rate.NewLimiter(b.every, b.burst)}
		b.buckets[key] = e
	}
	return e
}

// Admit takes one token for key if available.
func (b *TokenBucket) Admit(_ context.Context, key string) bool {
	for {
		e := b.bucket(key)
		e.mu.Lock()
		if e.dead {
			// Swept between lookup and lock; retry with a fresh bucket.
			e.mu.Unlock()
			continue
		}
		ok := e.lim.AllowN(b.now(), 1)
		e.mu.Unlock()
		return ok
	}
}

// Sweep drops buckets that have refilled to capacity.
// A full bucket behaves exactly like a new one, so removing it changes nothing observable.
func (b *TokenBucket) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for key, e := range b.buckets {
		e.mu.Lock()
		if e.lim.TokensAt(now) >= float64(b.burst) {
			e.dead = true
			delete(b.buckets, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked identities.
func (b *TokenBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

// StartCleanup sweeps full buckets every interval until ctx is done.
func (b *TokenBucket) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.Sweep()
			}
		}
	}()
}
