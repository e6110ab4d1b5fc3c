// Package ratelimit implements fixed-window request counting. Requests are
// counted in non-overlapping time buckets, so bursts are possible at window
// boundaries; the tradeoff buys O(1) memory and lookup per key.
package ratelimit

import "time"

// Entry is the counter state for one key's current window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Result is the admission decision for a single request.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store owns the shared counter state. Increment adds one request to the
// key's current window, opening a fresh window when the previous one has
// expired, and must be atomic per key.
type Store interface {
	Increment(key string, window time.Duration) (Entry, error)
}

// Limiter applies a fixed-window limit over an injectable Store.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Check counts the request against key and decides admission. A failing
// store never locks clients out: the request is admitted and the window
// reported as starting now.
func (l *Limiter) Check(key string) Result {
	entry, err := l.store.Increment(key, l.window)
	if err != nil {
		return Result{Allowed: true, Remaining: l.limit, ResetAt: time.Now().Add(l.window)}
	}

	if entry.Count > l.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.ResetAt}
	}

	remaining := l.limit - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetAt: entry.ResetAt}
}
