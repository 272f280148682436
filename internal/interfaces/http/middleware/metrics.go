package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and latency per route template, so
// /cases/:id is one series rather than one per case.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	if m == nil {
		m = prometheus.NewNopMetrics()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

//Personal.AI order the ending
