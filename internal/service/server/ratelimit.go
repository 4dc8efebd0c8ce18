package server

import (
	"sync"
	"time"
)

// rateLimiter enforces a minimum interval between sends per user.
type rateLimiter struct {
	mu          sync.Mutex
	last        map[string]time.Time
	minInterval time.Duration
}

func newRateLimiter(minInterval time.Duration) *rateLimiter {
	return &rateLimiter{
		last:        make(map[string]time.Time),
		minInterval: minInterval,
	}
}

func (l *rateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if prev, ok := l.last[userID]; ok && now.Sub(prev) < l.minInterval {
		return false
	}
	l.last[userID] = now
	return true
}
