package middleware

import (
	"net/http"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		latency := time.Since(start).Milliseconds()
		statusCode := c.Writer.Status()

		metrics.Get().IncrementRequests(statusCode < 400, latency)

		// Track by route template so ids in paths don't explode the map
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.Get().TrackEndpoint(path, c.Request.Method, statusCode, latency)
	}
}

// AuditMiddleware logs audit events for state-changing requests on the given routes
func AuditMiddleware(paths ...string) gin.HandlerFunc {
	auditPaths := make(map[string]bool, len(paths))
	for _, p := range paths {
		auditPaths[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		method := c.Request.Method
		if !auditPaths[c.FullPath()] || (method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete) {
			return
		}

		logger.AuditRequest(
			c.Request.Context(),
			method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.GetString("user_id"),
			c.ClientIP(),
		)
	}
}
