package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces a sliding window request budget per client key.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	seen map[string][]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string][]time.Time),
	}

	go rl.prune()

	return rl
}

// Allow records a request for key and reports whether it fits the budget.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	kept := rl.trim(rl.seen[key], now)
	if len(kept) >= rl.limit {
		rl.seen[key] = kept
		return false
	}

	rl.seen[key] = append(kept, now)
	return true
}

// trim drops timestamps older than the window. Entries are appended in
// order, so the survivors are always a suffix.
func (rl *RateLimiter) trim(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

func (rl *RateLimiter) prune() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, stamps := range rl.seen {
			kept := rl.trim(stamps, now)
			if len(kept) == 0 {
				delete(rl.seen, key)
				continue
			}
			rl.seen[key] = kept
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests from clients that exhausted their window budget.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": limiter.window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
