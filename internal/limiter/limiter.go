// Package limiter implements a per-client sliding-window rate limit.
package limiter

import (
	"sync"
	"time"
)

type ClientStatus struct {
	CurrCount       int       // Requests in current window
	PrevCount       int       // Requests in previous window
	CurrWindowStart time.Time // When the current window started
}

type RateLimiter struct {
	clients map[string]*ClientStatus
	mu      sync.Mutex
	limit   float64       // float so the weighted estimate compares exactly
	window  time.Duration // e.g. 1 minute
	now     func() time.Time
}

func New(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientStatus),
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
	}
}

// Allow records one request from key and reports whether it fits the limit.
// The previous window counts proportionally to how much of it still overlaps
// the sliding window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	// Floor to the start of the window we are in (the 12:05 slot for a
	// one-minute window)
	currWindowStart := now.Truncate(rl.window)

	status, exists := rl.clients[key]
	if !exists {
		// First request from this client
		if rl.limit < 1 {
			return false
		}
		rl.clients[key] = &ClientStatus{
			CurrCount:       1,
			CurrWindowStart: currWindowStart,
		}
		return true
	}

	// Roll the counters when a new window has started since the last request
	if currWindowStart.After(status.CurrWindowStart) {
		elapsedWindows := currWindowStart.Sub(status.CurrWindowStart) / rl.window
		if elapsedWindows == 1 {
			// Adjacent window: current becomes previous
			status.PrevCount = status.CurrCount
		} else {
			// Idle for longer than a window, nothing carries over
			status.PrevCount = 0
		}
		status.CurrCount = 0
		status.CurrWindowStart = currWindowStart
	}

	// Sliding window estimate: the previous window weighs by the share of it
	// still inside the sliding window. 10% into the new window, 90% of the
	// previous count still applies.
	timeIntoWindow := now.Sub(currWindowStart)
	prevWeight := float64(rl.window-timeIntoWindow) / float64(rl.window)
	estimatedRate := float64(status.PrevCount)*prevWeight + float64(status.CurrCount)

	if estimatedRate >= rl.limit {
		return false // over the limit, not counted
	}

	// Allowed: count it
	status.CurrCount++
	return true
}

// Sweep forgets clients idle for more than two windows.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Truncate(rl.window).Add(-2 * rl.window)
	removed := 0
	for key, status := range rl.clients {
		if status.CurrWindowStart.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Clients reports how many keys are tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
