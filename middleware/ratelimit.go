package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	visitorSweepEvery = 5 * time.Minute
	visitorIdleTTL    = 10 * time.Minute
)

// visitor pairs a token bucket with the moment its IP was last seen, so
// idle buckets can be swept.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles requests per client IP with a token bucket of r
// tokens per second and burst b. RFID readers posting batches share the
// same budget as interactive clients.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	visitors := &sync.Map{}

	go sweepVisitors(visitors)

	return func(c *gin.Context) {
		v, _ := visitors.LoadOrStore(c.ClientIP(), &visitor{limiter: rate.NewLimiter(r, b)})
		vis := v.(*visitor)
		vis.lastSeen = time.Now()
		if !vis.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func sweepVisitors(visitors *sync.Map) {
	ticker := time.NewTicker(visitorSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-visitorIdleTTL)
		visitors.Range(func(k, v any) bool {
			if v.(*visitor).lastSeen.Before(cutoff) {
				visitors.Delete(k)
			}
			return true
		})
	}
}
