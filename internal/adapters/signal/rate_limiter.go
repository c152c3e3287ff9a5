package signal

import (
	"sync"
	"time"
)

// rateLimiter is a per-connection sliding window over signaling
// messages. limit <= 0 disables it.
type rateLimiter struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
}

func newRateLimiter(limit int, interval time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, interval: interval}
}

func (rl *rateLimiter) Allow() bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	rl.history = fresh

	if len(rl.history) >= rl.limit {
		return false
	}
	rl.history = append(rl.history, now)
	return true
}
