package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/cache"
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/migration"
	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testUser = "user-42"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router      *gin.Engine
	estimator   *service.EstimatorService
	preferences *service.PreferenceService
	auth        *service.AuthService
}

type envOptions struct {
	mode      estimator.Mode
	session   bool
	perMinute int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, migration.NewMigrator(db).Run())

	pc := cache.NewMemoryPreferenceCache(time.Minute)
	t.Cleanup(func() { pc.Close() })

	preferences := service.NewPreferenceService(repository.NewPreferenceRepository(db), pc)
	estimatorService := service.NewEstimatorService(preferences, opts.mode, time.Second)

	env := &testEnv{
		estimator:   estimatorService,
		preferences: preferences,
	}

	deps := RouterDeps{
		Version:     "test",
		DB:          db,
		Estimator:   estimatorService,
		Preferences: preferences,
		Excel:       service.NewExcelGenerator(),
	}
	if opts.perMinute > 0 {
		deps.SaveLimiter = middleware.NewUserRateLimiter(opts.perMinute, 1)
	}
	if opts.session {
		auth, err := service.NewAuthService(context.Background(), repository.NewUserRepository(db), service.AuthOptions{})
		require.NoError(t, err)
		require.NoError(t, auth.CreateUser(context.Background(), "alice", "secret123"))
		deps.Auth = auth
		env.auth = auth
	}

	env.router = NewRouter(deps)
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.DefaultIdentityHeader, testUser)
	return req
}

func formRequest(method, path string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.DefaultIdentityHeader, testUser)
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func scenarioBody() map[string]interface{} {
	return map[string]interface{}{
		"optimistic":           4,
		"likely":               8,
		"pessimistic":          16,
		"hourlyRate":           50,
		"contractorFeePercent": 20,
	}
}

func (e *testEnv) storedDefaults(t *testing.T) map[string]interface{} {
	t.Helper()
	e.estimator.Wait()
	w := e.do(t, jsonRequest(t, http.MethodGet, "/api/preferences", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return decodeBody(t, w)["data"].(map[string]interface{})
}
