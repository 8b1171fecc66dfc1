package middleware

import (
	"fmt"
	"time"

	"gtranslate-go/internal/monitoring"
	"github.com/gin-gonic/gin"
)

func statusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", code/100)
}

// Metrics is an HTTP middleware to track per-route counters and latency histogram
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		monitoring.HTTPInFlight.Inc()
		c.Next()
		monitoring.HTTPInFlight.Dec()

		durSec := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		sc := statusClass(c.Writer.Status())

		monitoring.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, sc).Inc()
		monitoring.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, sc).Observe(durSec)
	}
}
