package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"entropy-gate.backend/pkg/metrics"
)

// MetricsMiddleware records request counts and latency. The route template
// (not the raw path) is used as the label to keep cardinality bounded.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
