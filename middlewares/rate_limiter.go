package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	rate  rate.Limit
	burst int
	ips   map[string]*visitor
	mu    sync.Mutex
	now   func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:  rate.Limit(rps),
		burst: burst,
		ips:   make(map[string]*visitor),
		now:   time.Now,
	}
}

// NewStrictRateLimiter is meant for the login endpoint: 5 attempts per minute per IP.
func NewStrictRateLimiter() *RateLimiter {
	return NewRateLimiter(float64(rate.Every(1*time.Minute)), 5)
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":  false,
				"message": "too many requests, please wait a moment",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = v
	}
	v.lastSeen = now

	for key, other := range rl.ips {
		if now.Sub(other.lastSeen) > limiterIdleTTL {
			delete(rl.ips, key)
		}
	}
	return v.limiter.AllowN(now, 1)
}
