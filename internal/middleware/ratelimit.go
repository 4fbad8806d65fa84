package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ActorLimiter hands out one token bucket per actor.
type ActorLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func NewActorLimiter(qps float64, burst int) *ActorLimiter {
	if qps <= 0 {
		qps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &ActorLimiter{
		limiters: make(map[string]*rate.Limiter),
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

func (l *ActorLimiter) limiterFor(actor string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[actor]
	if !ok {
		limiter = rate.NewLimiter(l.qps, l.burst)
		l.limiters[actor] = limiter
	}
	return limiter
}

// RateLimitMiddleware throttles per actor; it must run after Stage A so the
// identity is attached.
func RateLimitMiddleware(limiters *ActorLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			// AuthMiddleware should have intercepted this already.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if !limiters.limiterFor(id.Actor).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
