package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestReadinessCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	components := decodeBody(t, w)["components"].(map[string]interface{})
	assert.Contains(t, components, "database")
	assert.Contains(t, components, "memory")
}

func TestDetailedHealthCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "test", body["version"])
	components := body["components"].(map[string]interface{})
	for _, name := range []string{"database", "memory", "cache", "preferences"} {
		assert.Contains(t, components, name)
	}
	cache := components["cache"].(map[string]interface{})
	assert.Equal(t, "healthy", cache["status"])
}

func TestHealthUnhealthyWithoutDatabase(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.ReadinessCheck(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetMetrics(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	env.do(t, jsonRequest(t, http.MethodPost, "/api/estimate", scenarioBody()))
	env.estimator.Wait()

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	estimates := body["estimates"].(map[string]interface{})
	assert.GreaterOrEqual(t, estimates["computed"].(float64), 1.0)
	assert.Contains(t, body, "preferences")
}

func TestDebugMemoryIncludesPoolStats(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/debug/memory", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body, "goroutines")
	pool := body["db_pool"].(map[string]interface{})
	assert.Equal(t, 1.0, pool["max_open_connections"])
}

func TestPrometheusMetrics(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	env.do(t, jsonRequest(t, http.MethodPost, "/api/estimate", scenarioBody()))

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pert_estimates_total")
	assert.Contains(t, w.Body.String(), `endpoint="POST /api/estimate"`)
}
