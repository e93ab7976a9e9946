package atclient

import (
	"sync"
	"time"
)

// DefaultMaxPoints and DefaultWindow are the ceiling spec.md §4.2 names:
// 3000 points / 3600s (Bluesky's unauthenticated public-API budget).
const (
	DefaultMaxPoints = 3000
	DefaultWindow    = time.Hour
)

type ledgerEntry struct {
	at   time.Time
	cost int
}

// RateLimiter is a points-based sliding-window limiter, ported field-for-
// field from skymarshal/network/client.py::RateLimiter. It is thread-safe
// and releases its mutex while sleeping so unrelated callers aren't
// blocked, per spec.md §4.2 and §5.
type RateLimiter struct {
	mu         sync.Mutex
	maxPoints  int
	window     time.Duration
	requests   []ledgerEntry
	nowFn      func() time.Time
	sleepFn    func(time.Duration)
}

// NewRateLimiter builds a limiter with the given ceiling and window.
func NewRateLimiter(maxPoints int, window time.Duration) *RateLimiter {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxPoints: maxPoints,
		window:    window,
		nowFn:     time.Now,
		sleepFn:   time.Sleep,
	}
}

// Acquire blocks until cost points can be consumed without exceeding the
// ceiling, then records the consumption.
func (r *RateLimiter) Acquire(cost int) {
	if cost <= 0 {
		cost = 1
	}
	r.mu.Lock()
	for {
		now := r.nowFn()
		cutoff := now.Add(-r.window)
		r.requests = pruneBefore(r.requests, cutoff)

		current := sumCost(r.requests)
		if current+cost <= r.maxPoints {
			r.requests = append(r.requests, ledgerEntry{at: now, cost: cost})
			r.mu.Unlock()
			return
		}

		if len(r.requests) == 0 {
			// Shouldn't happen (current==0 would have passed above), but
			// guard against a tight spin.
			r.requests = append(r.requests, ledgerEntry{at: now, cost: cost})
			r.mu.Unlock()
			return
		}

		oldest := r.requests[0].at
		wait := oldest.Add(r.window).Sub(now) + time.Second
		if wait <= 0 {
			continue
		}

		// Release the lock while sleeping so other goroutines can proceed.
		r.mu.Unlock()
		r.sleepFn(wait)
		r.mu.Lock()
	}
}

// UsageStats is the snapshot spec.md's RateLimiter.get_usage_stats returns.
type UsageStats struct {
	PointsUsed        int
	PointsRemaining   int
	MaxPoints         int
	RequestsInWindow  int
}

// Stats returns current usage without consuming any points.
func (r *RateLimiter) Stats() UsageStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	cutoff := now.Add(-r.window)
	// pruneBefore compacts in place, so the ledger must take the pruned slice.
	r.requests = pruneBefore(r.requests, cutoff)
	recent := r.requests
	used := sumCost(recent)
	remaining := r.maxPoints - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageStats{
		PointsUsed:       used,
		PointsRemaining:  remaining,
		MaxPoints:        r.maxPoints,
		RequestsInWindow: len(recent),
	}
}

func pruneBefore(entries []ledgerEntry, cutoff time.Time) []ledgerEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

func sumCost(entries []ledgerEntry) int {
	total := 0
	for _, e := range entries {
		total += e.cost
	}
	return total
}
