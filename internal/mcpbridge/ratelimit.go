package mcpbridge

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware that enforces a per-client token
// bucket of requests per window. Clients are keyed by API key when one is
// sent in keyHeader, otherwise by IP. Stale entries are cleaned every 5
// minutes until ctx is done.
func RateLimiter(ctx context.Context, requests int, window time.Duration, keyHeader string) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*clientLimiter)
	every := rate.Every(window / time.Duration(requests))
	retryAfter := strconv.Itoa(max(1, int((window / time.Duration(requests)).Seconds())))

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			mu.Lock()
			for k, l := range limiters {
				if time.Since(l.lastSeen) > 2*window+10*time.Minute {
					delete(limiters, k)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if keyHeader != "" {
			if k := c.GetHeader(keyHeader); k != "" {
				key = "key:" + k
			}
		}

		mu.Lock()
		l, ok := limiters[key]
		if !ok {
			l = &clientLimiter{limiter: rate.NewLimiter(every, requests)}
			limiters[key] = l
		}
		l.lastSeen = time.Now()
		mu.Unlock()

		if !l.limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
