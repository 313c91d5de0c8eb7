package middleware

import (
	"net/http"
	"sync"

	"automate-chat/utils"

	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	// Limit is tokens replenished per second, Burst the bucket size.
	Limit rate.Limit
	Burst int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 20, Burst: 40}
}

type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   RateLimitConfig
}

func (c *clientLimiters) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.config.Limit, c.config.Burst)
		c.limiters[key] = limiter
	}
	return limiter
}

// RateLimit applies a per-client-IP token bucket in front of the handler.
func RateLimit(config RateLimitConfig) Middleware {
	limiters := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiters.get(utils.RealClientIP(r)).Allow() {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}
