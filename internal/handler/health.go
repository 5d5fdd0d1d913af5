package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/gin-gonic/gin"
)

// pendingSavesLimit acima disso as gravações em segundo plano estão se acumulando
const pendingSavesLimit = 100

// HealthHandler handles health check and metrics endpoints
type HealthHandler struct {
	db        *database.DB
	cache     metrics.Pinger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
// cache is nil when the preference cache is local.
func NewHealthHandler(db *database.DB, cache metrics.Pinger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		version:   version,
		startTime: time.Now(),
	}
}

// LivenessCheck returns basic liveness status
// @Summary Liveness check
// @Description Returns basic liveness status for Kubernetes probes
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck returns readiness status including dependencies
// @Summary Readiness check
// @Description Returns readiness status including database connectivity
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"database": h.checkDatabase(),
		"memory":   metrics.CheckMemoryHealth(512),
	}
	h.respond(c, components)
}

// DetailedHealthCheck returns comprehensive health information
// @Summary Detailed health check
// @Description Returns comprehensive health information including all components
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health [get]
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := map[string]metrics.HealthStatus{
		"database":    h.checkDatabase(),
		"memory":      metrics.CheckMemoryHealth(512),
		"cache":       metrics.CheckCacheHealth(ctx, h.cache),
		"preferences": h.checkPreferenceSaves(),
	}
	h.respond(c, components)
}

func (h *HealthHandler) checkDatabase() metrics.HealthStatus {
	if h.db == nil {
		return metrics.CheckDatabaseHealth(nil)
	}
	return metrics.CheckDatabaseHealth(h.db.DB)
}

// checkPreferenceSaves checks the fire-and-forget save backlog and failure rate
func (h *HealthHandler) checkPreferenceSaves() metrics.HealthStatus {
	snapshot := metrics.Get().Snapshot()

	if snapshot.Preferences.Pending > pendingSavesLimit {
		return metrics.HealthStatus{
			Status:  "degraded",
			Message: "High number of pending preference saves",
		}
	}

	total := snapshot.Preferences.Saves + snapshot.Preferences.SaveErrors
	if total > 0 {
		failureRate := float64(snapshot.Preferences.SaveErrors) / float64(total) * 100
		if failureRate > 50 {
			return metrics.HealthStatus{
				Status:  "degraded",
				Message: "High preference save failure rate",
			}
		}
	}

	return metrics.HealthStatus{
		Status: "healthy",
	}
}

func (h *HealthHandler) respond(c *gin.Context, components map[string]metrics.HealthStatus) {
	overallStatus := metrics.DetermineOverallStatus(components)

	healthCheck := metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}

// GetMetrics returns application metrics
// @Summary Get application metrics
// @Description Returns request, estimate, preference and cache counters
// @Tags metrics
// @Produce json
// @Success 200 {object} metrics.MetricsSnapshot
// @Router /metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Get().Snapshot())
}

// DebugMemory returns runtime memory statistics
// @Summary Memory statistics
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /debug/memory [get]
func (h *HealthHandler) DebugMemory(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"heap_alloc_mb":  m.HeapAlloc / 1024 / 1024,
		"heap_inuse_mb":  m.HeapInuse / 1024 / 1024,
		"heap_objects":   m.HeapObjects,
		"goroutines":     runtime.NumGoroutine(),
		"gc_runs":        m.NumGC,
		"gc_pause_total": m.PauseTotalNs / 1000000, // ms
		"db_pool":        h.poolStats(),
	})
}

func (h *HealthHandler) poolStats() interface{} {
	if h.db == nil {
		return nil
	}
	return database.GetPoolStats(h.db.DB)
}
