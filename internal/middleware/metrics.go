package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quote-desk-api/internal/service"
)

const (
	metricsPath   = "/metrics"
	unmatchedPath = "unmatched"
)

// Metrics records request duration and status per route template. Requests
// that match no route share one label so scanners cannot blow up cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
