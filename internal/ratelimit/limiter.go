// Package ratelimit implements fixed-window request counting per client
// identity. Each route gets its own Limiter so budgets stay independent.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed bool
	// Limit is the window budget, Remaining what is left of it.
	Limit     int
	Remaining int
	// Reset is when the current window ends.
	Reset time.Time
	// RetryAfter is how long a denied caller should wait. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter counts requests in fixed windows per key. The window is aligned
// to the first request in it, not to the calendar.
type Limiter struct {
	max    int
	window time.Duration

	mu      sync.RWMutex
	windows map[string]*entry

	now func() time.Time
}

type entry struct {
	mu    sync.Mutex
	start time.Time
	count int
	// evicted marks an entry removed from the map by the purge; an Admit
	// that fetched it before the purge must retry on a live entry so its
	// increment is not lost.
	evicted bool
}

// New creates a limiter admitting at most max requests per window per key.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		windows: make(map[string]*entry),
		now:     time.Now,
	}
}

// Admit performs an atomic increment-and-check for key. The counter and the
// window boundary are read and updated under the entry's own lock, so
// concurrent requests for the same key never race a read-then-write. An
// entry evicted between lookup and lock is retried on a live one.
func (l *Limiter) Admit(key string) Decision {
	for {
		e := l.getOrCreateEntry(key)

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}

		now := l.now()
		if now.Sub(e.start) >= l.window {
			e.start = now
			e.count = 0
		}

		reset := e.start.Add(l.window)
		if e.count < l.max {
			e.count++
			d := Decision{
				Allowed:   true,
				Limit:     l.max,
				Remaining: l.max - e.count,
				Reset:     reset,
			}
			e.mu.Unlock()
			return d
		}

		d := Decision{
			Limit:      l.max,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: reset.Sub(now),
		}
		e.mu.Unlock()
		return d
	}
}

// Reset forgets the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, exists := l.windows[key]; exists {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
		delete(l.windows, key)
	}
}

// getOrCreateEntry gets or creates the window entry for a key.
func (l *Limiter) getOrCreateEntry(key string) *entry {
	l.mu.RLock()
	e, exists := l.windows[key]
	l.mu.RUnlock()

	if exists {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if e, exists := l.windows[key]; exists {
		return e
	}

	// Creating a new entry is a cheap moment to drop windows that have
	// already elapsed, keeping the map bounded under identity churn.
	l.purgeExpiredLocked()

	e = &entry{start: l.now()}
	l.windows[key] = e
	return e
}

func (l *Limiter) purgeExpiredLocked() {
	now := l.now()
	for key, e := range l.windows {
		e.mu.Lock()
		stale := now.Sub(e.start) >= l.window
		if stale {
			e.evicted = true
		}
		e.mu.Unlock()
		if stale {
			delete(l.windows, key)
		}
	}
}
