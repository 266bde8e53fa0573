package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// EndpointRateLimiter holds separate request budgets for individual routes.
type EndpointRateLimiter struct {
	mu     sync.RWMutex
	routes map[string]*RateLimiter
}

func NewEndpointRateLimiter() *EndpointRateLimiter {
	return &EndpointRateLimiter{
		routes: make(map[string]*RateLimiter),
	}
}

// AddEndpoint registers a budget for the given route pattern.
func (erl *EndpointRateLimiter) AddEndpoint(path string, limit int, window time.Duration) {
	erl.mu.Lock()
	defer erl.mu.Unlock()
	erl.routes[path] = NewRateLimiter(limit, window)
}

// Middleware enforces the registered budgets. Routes without one pass through.
func (erl *EndpointRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		erl.mu.RLock()
		limiter := erl.routes[c.FullPath()]
		erl.mu.RUnlock()

		if limiter != nil && !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded for this endpoint",
				"retry_after": limiter.window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

// AuthRateLimiter applies a tight per-IP budget to credential endpoints.
func AuthRateLimiter() gin.HandlerFunc {
	limiter := NewRateLimiter(5, time.Minute)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many authentication attempts, please try again later",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}
