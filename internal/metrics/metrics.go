package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointMetrics tracks metrics for a specific endpoint
type EndpointMetrics struct {
	Requests     int64
	Errors       int64
	TotalLatency int64
}

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	// Request latency (in milliseconds)
	TotalLatency int64
	RequestCount int64

	// Estimate metrics
	EstimatesComputed  int64
	NonFiniteEstimates int64
	InputCoercions     int64
	InputRejections    int64
	EstimatesExported  int64

	// Preference metrics
	PreferenceSaves       int64
	PreferenceSaveErrors  int64
	PreferenceSaveLatency int64
	PreferenceLoads       int64
	DispatchesPending     int64
	DispatchesDropped     int64
	SavesRateLimited      int64

	// Cache metrics
	CacheHits   int64
	CacheMisses int64
	CacheErrors int64

	// Authentication metrics
	LoginAttempts  int64
	LoginSuccesses int64
	LoginFailures  int64

	// Endpoint-specific metrics
	EndpointMetrics map[string]*EndpointMetrics

	// Start time for uptime calculation
	StartTime time.Time
}

// global metrics instance
var globalMetrics *Metrics
var once sync.Once

// New creates a standalone metrics instance
func New() *Metrics {
	return &Metrics{
		StartTime:       time.Now(),
		EndpointMetrics: make(map[string]*EndpointMetrics),
	}
}

// Init initializes the global metrics instance
func Init() {
	once.Do(func() {
		globalMetrics = New()
	})
}

// Get returns the global metrics instance
func Get() *Metrics {
	Init()
	return globalMetrics
}

// IncrementRequests increments request counters
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	atomic.AddInt64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.TotalLatency, latencyMs)
	atomic.AddInt64(&m.RequestCount, 1)

	if success {
		atomic.AddInt64(&m.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&m.FailedRequests, 1)
	}
}

// IncrementEstimate counts a computed estimate
func (m *Metrics) IncrementEstimate(finite bool) {
	atomic.AddInt64(&m.EstimatesComputed, 1)
	if !finite {
		atomic.AddInt64(&m.NonFiniteEstimates, 1)
	}
}

// AddInputCoercions counts fields replaced by 0 in lenient mode
func (m *Metrics) AddInputCoercions(n int) {
	atomic.AddInt64(&m.InputCoercions, int64(n))
}

// IncrementInputRejection counts a form rejected in strict mode
func (m *Metrics) IncrementInputRejection() {
	atomic.AddInt64(&m.InputRejections, 1)
}

// IncrementExport counts a spreadsheet export
func (m *Metrics) IncrementExport() {
	atomic.AddInt64(&m.EstimatesExported, 1)
}

// IncrementPreferenceSave counts a save attempt
func (m *Metrics) IncrementPreferenceSave(success bool, latencyMs int64) {
	if success {
		atomic.AddInt64(&m.PreferenceSaves, 1)
	} else {
		atomic.AddInt64(&m.PreferenceSaveErrors, 1)
	}
	atomic.AddInt64(&m.PreferenceSaveLatency, latencyMs)
}

// IncrementPreferenceLoad counts a read-path lookup
func (m *Metrics) IncrementPreferenceLoad() {
	atomic.AddInt64(&m.PreferenceLoads, 1)
}

// DispatchStarted marks a fire-and-forget save as in flight
func (m *Metrics) DispatchStarted() {
	atomic.AddInt64(&m.DispatchesPending, 1)
}

// DispatchFinished marks a fire-and-forget save as done
func (m *Metrics) DispatchFinished() {
	atomic.AddInt64(&m.DispatchesPending, -1)
}

// IncrementDispatchDropped counts a save skipped because the dispatcher is closed
func (m *Metrics) IncrementDispatchDropped() {
	atomic.AddInt64(&m.DispatchesDropped, 1)
}

// IncrementRateLimited counts a save rejected by the rate limiter
func (m *Metrics) IncrementRateLimited() {
	atomic.AddInt64(&m.SavesRateLimited, 1)
}

// IncrementCache counts a cache lookup
func (m *Metrics) IncrementCache(hit bool) {
	if hit {
		atomic.AddInt64(&m.CacheHits, 1)
	} else {
		atomic.AddInt64(&m.CacheMisses, 1)
	}
}

// IncrementCacheError counts a failed cache operation
func (m *Metrics) IncrementCacheError() {
	atomic.AddInt64(&m.CacheErrors, 1)
}

// IncrementLogin increments login counters
func (m *Metrics) IncrementLogin(success bool) {
	atomic.AddInt64(&m.LoginAttempts, 1)
	if success {
		atomic.AddInt64(&m.LoginSuccesses, 1)
	} else {
		atomic.AddInt64(&m.LoginFailures, 1)
	}
}

// TrackEndpoint tracks metrics for a specific endpoint
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndpointMetrics == nil {
		m.EndpointMetrics = make(map[string]*EndpointMetrics)
	}

	em, exists := m.EndpointMetrics[key]
	if !exists {
		em = &EndpointMetrics{}
		m.EndpointMetrics[key] = em
	}

	atomic.AddInt64(&em.Requests, 1)
	atomic.AddInt64(&em.TotalLatency, latencyMs)
	if statusCode >= 400 {
		atomic.AddInt64(&em.Errors, 1)
	}
}

// GetEndpointMetrics returns a copy of endpoint metrics
func (m *Metrics) GetEndpointMetrics() map[string]EndpointMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]EndpointMetrics)
	for k, v := range m.EndpointMetrics {
		result[k] = EndpointMetrics{
			Requests:     atomic.LoadInt64(&v.Requests),
			Errors:       atomic.LoadInt64(&v.Errors),
			TotalLatency: atomic.LoadInt64(&v.TotalLatency),
		}
	}
	return result
}

// GetAverageLatency returns average request latency in milliseconds
func (m *Metrics) GetAverageLatency() float64 {
	count := atomic.LoadInt64(&m.RequestCount)
	if count == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.TotalLatency)
	return float64(total) / float64(count)
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.StartTime)
}

// EndpointMetricsSnapshot represents endpoint metrics in a snapshot
type EndpointMetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsSnapshot represents a point-in-time snapshot of all metrics
type MetricsSnapshot struct {
	// Uptime
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	// Request metrics
	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	Estimates struct {
		Computed   int64 `json:"computed"`
		NonFinite  int64 `json:"non_finite"`
		Coercions  int64 `json:"input_coercions"`
		Rejections int64 `json:"input_rejections"`
		Exported   int64 `json:"exported"`
	} `json:"estimates"`

	Preferences struct {
		Saves        int64   `json:"saves"`
		SaveErrors   int64   `json:"save_errors"`
		AvgLatencyMs float64 `json:"avg_save_latency_ms"`
		Loads        int64   `json:"loads"`
		Pending      int64   `json:"pending_dispatches"`
		Dropped      int64   `json:"dropped_dispatches"`
		RateLimited  int64   `json:"rate_limited"`
	} `json:"preferences"`

	Cache struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
		Errors int64 `json:"errors"`
	} `json:"cache"`

	// Auth metrics
	Auth struct {
		LoginAttempts  int64 `json:"login_attempts"`
		LoginSuccesses int64 `json:"login_successes"`
		LoginFailures  int64 `json:"login_failures"`
	} `json:"auth"`

	// System metrics
	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	// Endpoint-specific metrics (top endpoints by request count)
	Endpoints map[string]EndpointMetricsSnapshot `json:"endpoints,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := MetricsSnapshot{}

	// Uptime
	snapshot.UptimeSeconds = m.GetUptime().Seconds()
	snapshot.StartTime = m.StartTime.Format(time.RFC3339)

	// Request metrics
	snapshot.Requests.Total = atomic.LoadInt64(&m.TotalRequests)
	snapshot.Requests.Successful = atomic.LoadInt64(&m.SuccessfulRequests)
	snapshot.Requests.Failed = atomic.LoadInt64(&m.FailedRequests)
	snapshot.Requests.AvgLatencyMs = m.GetAverageLatency()

	snapshot.Estimates.Computed = atomic.LoadInt64(&m.EstimatesComputed)
	snapshot.Estimates.NonFinite = atomic.LoadInt64(&m.NonFiniteEstimates)
	snapshot.Estimates.Coercions = atomic.LoadInt64(&m.InputCoercions)
	snapshot.Estimates.Rejections = atomic.LoadInt64(&m.InputRejections)
	snapshot.Estimates.Exported = atomic.LoadInt64(&m.EstimatesExported)

	saves := atomic.LoadInt64(&m.PreferenceSaves)
	saveErrors := atomic.LoadInt64(&m.PreferenceSaveErrors)
	snapshot.Preferences.Saves = saves
	snapshot.Preferences.SaveErrors = saveErrors
	if attempts := saves + saveErrors; attempts > 0 {
		snapshot.Preferences.AvgLatencyMs = float64(atomic.LoadInt64(&m.PreferenceSaveLatency)) / float64(attempts)
	}
	snapshot.Preferences.Loads = atomic.LoadInt64(&m.PreferenceLoads)
	snapshot.Preferences.Pending = atomic.LoadInt64(&m.DispatchesPending)
	snapshot.Preferences.Dropped = atomic.LoadInt64(&m.DispatchesDropped)
	snapshot.Preferences.RateLimited = atomic.LoadInt64(&m.SavesRateLimited)

	snapshot.Cache.Hits = atomic.LoadInt64(&m.CacheHits)
	snapshot.Cache.Misses = atomic.LoadInt64(&m.CacheMisses)
	snapshot.Cache.Errors = atomic.LoadInt64(&m.CacheErrors)

	// Auth metrics
	snapshot.Auth.LoginAttempts = atomic.LoadInt64(&m.LoginAttempts)
	snapshot.Auth.LoginSuccesses = atomic.LoadInt64(&m.LoginSuccesses)
	snapshot.Auth.LoginFailures = atomic.LoadInt64(&m.LoginFailures)

	// System metrics
	snapshot.System.Goroutines = runtime.NumGoroutine()
	snapshot.System.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	snapshot.System.HeapInUseMB = memStats.HeapInuse / 1024 / 1024
	snapshot.System.StackInUseMB = memStats.StackInuse / 1024 / 1024
	snapshot.System.NumGC = memStats.NumGC

	// Endpoint metrics
	endpointMetrics := m.GetEndpointMetrics()
	if len(endpointMetrics) > 0 {
		snapshot.Endpoints = make(map[string]EndpointMetricsSnapshot)
		for k, v := range endpointMetrics {
			em := EndpointMetricsSnapshot{
				Requests: v.Requests,
				Errors:   v.Errors,
			}
			if v.Requests > 0 {
				em.ErrorRate = float64(v.Errors) / float64(v.Requests) * 100
				em.AvgLatencyMs = float64(v.TotalLatency) / float64(v.Requests)
			}
			snapshot.Endpoints[k] = em
		}
	}

	return snapshot
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status  string `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     string                  `json:"status"` // "healthy", "degraded", "unhealthy"
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// CheckDatabaseHealth checks database connectivity
func CheckDatabaseHealth(db *sql.DB) HealthStatus {
	start := time.Now()

	if db == nil {
		return HealthStatus{
			Status:  "unhealthy",
			Message: "database connection not initialized",
		}
	}

	err := db.Ping()
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return HealthStatus{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: latency,
		}
	}

	// Check if latency is acceptable (< 100ms)
	if latency > 100 {
		return HealthStatus{
			Status:  "degraded",
			Message: "high latency",
			Latency: latency,
		}
	}

	return HealthStatus{
		Status:  "healthy",
		Latency: latency,
	}
}

// CheckMemoryHealth checks memory usage
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapMB := memStats.HeapAlloc / 1024 / 1024

	if heapMB > maxHeapMB {
		return HealthStatus{
			Status:  "unhealthy",
			Message: "heap memory exceeds limit",
		}
	}

	// Warn if using more than 80% of limit
	if heapMB > (maxHeapMB * 80 / 100) {
		return HealthStatus{
			Status:  "degraded",
			Message: "heap memory usage high",
		}
	}

	return HealthStatus{
		Status: "healthy",
	}
}

// DetermineOverallStatus determines overall health from component statuses
func DetermineOverallStatus(components map[string]HealthStatus) string {
	hasUnhealthy := false
	hasDegraded := false

	for _, status := range components {
		switch status.Status {
		case "unhealthy":
			hasUnhealthy = true
		case "degraded":
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return "unhealthy"
	}
	if hasDegraded {
		return "degraded"
	}
	return "healthy"
}

// Pinger is anything that can report reachability, like a Redis client
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckCacheHealth checks a remote cache; a nil pinger means the cache is local
func CheckCacheHealth(ctx context.Context, p Pinger) HealthStatus {
	if p == nil {
		return HealthStatus{Status: "healthy", Message: "local cache"}
	}

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		// Cache failures never fail saves or loads
		return HealthStatus{Status: "degraded", Message: err.Error(), Latency: latency}
	}
	return HealthStatus{Status: "healthy", Latency: latency}
}
