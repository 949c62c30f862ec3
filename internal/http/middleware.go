package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tqt-dev/auth-api/internal/metrics"
	"github.com/tqt-dev/auth-api/internal/queue"
	"github.com/tqt-dev/auth-api/internal/repo"
)

const requestIDHeader = "X-Request-ID"

// RequestID accepts the inbound X-Request-ID or generates one, echoes it on
// the response, and plants it in the request context for event headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(queue.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Metrics records the prometheus request counter, duration and in-flight
// gauge per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.InFlight.Inc()
		start := time.Now()

		c.Next()

		metrics.InFlight.Dec()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RateLimit caps requests per client IP per minute via the redis counter.
// A nil redis or a redis failure lets the request through: registration must
// not depend on the limiter being up.
func RateLimit(rds *repo.Redis, perMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rds == nil || perMin <= 0 {
			c.Next()
			return
		}
		key := "rl:" + c.FullPath() + ":" + c.ClientIP()
		ok, err := rds.Allow(c.Request.Context(), key, perMin, time.Minute)
		if err == nil && !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
