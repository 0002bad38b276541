package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one identity's counter. count never exceeds the limit.
type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	dead    bool
}

// FixedWindow is an in-process fixed-window counter.
// Bursts of up to 2x limit across a window boundary are accepted.
type FixedWindow struct {
	limit   int
	period  time.Duration
	now     Clock
	windows sync.Map // key -> *window
}

var _ Limiter = (*FixedWindow)(nil)

// NewFixedWindow creates a limiter admitting limit requests per period per key.
func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{limit: limit, period: period, now: time.Now}
}

// WithClock replaces the time source.
func (l *FixedWindow) WithClock(now Clock) *FixedWindow {
	l.now = now
	return l
}

// Admit reports whether a request for key fits in the current window.
// A rejected request does not increment the counter.
func (l *FixedWindow) Admit(_ context.Context, key string) bool {
	for {
		v, _ := l.windows.LoadOrStore(key, &window{})
		w := v.(*window)

		w.mu.Lock()
		if w.dead {
			// Swept between load and lock; retry with a fresh entry.
			w.mu.Unlock()
			continue
		}
		now := l.now()
		if w.resetAt.IsZero() || now.After(w.resetAt) {
			w.count = 0
			w.resetAt = now.Add(l.period)
		}
		ok := w.count < l.limit
		if ok {
			w.count++
		}
		w.mu.Unlock()
		return ok
	}
}

// Sweep drops windows whose reset time has passed.
// A window is live up to and including its reset instant.
// An expired window would be replaced on its next use, so removing it
// changes nothing observable.
func (l *FixedWindow) Sweep() int {
	removed := 0
	now := l.now()
	l.windows.Range(func(k, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		if !w.resetAt.IsZero() && now.After(w.resetAt) {
			w.dead = true
			l.windows.Delete(k)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of tracked identities.
func (l *FixedWindow) Len() int {
	n := 0
	l.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartCleanup sweeps expired windows every interval until ctx is done.
func (l *FixedWindow) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
