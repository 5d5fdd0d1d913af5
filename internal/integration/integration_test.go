// Package integration provides end-to-end tests for the estimator running on PostgreSQL:
// login, widget render, fire-and-forget saves, concurrent users and shutdown drain.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/cache"
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/estimator"
	"github.com/cleberrangel/pert-estimator/internal/handler"
	"github.com/cleberrangel/pert-estimator/internal/migration"
	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
)

// TestContext holds all dependencies for integration tests
type TestContext struct {
	DB          *database.DB
	Router      *gin.Engine
	AuthService *service.AuthService
	Estimator   *service.EstimatorService
	Preferences *service.PreferenceService
	Repo        *repository.PreferenceRepository

	SessionCookie *http.Cookie
	CSRFToken     string
}

// setupTestContext creates a throwaway PostgreSQL database with all services wired
func setupTestContext(t *testing.T) *TestContext {
	t.Helper()

	dbConfig := database.Config{
		Driver:   database.Postgres,
		Host:     getEnvOrDefault("TEST_DB_HOST", "127.0.0.1"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "5432"),
		User:     getEnvOrDefault("TEST_DB_USER", "postgres"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "postgres"),
		DBName:   fmt.Sprintf("test_pert_%d", time.Now().UnixNano()),
		SSLMode:  "disable",
	}

	adminConfig := dbConfig
	adminConfig.DBName = "postgres"

	adminDB, err := database.Connect(adminConfig)
	if err != nil {
		t.Skipf("Skipping test: could not connect to PostgreSQL: %v", err)
	}

	_, err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbConfig.DBName))
	adminDB.Close()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	testDB, err := database.Open(dbConfig)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close(testDB)
		adminDB, _ := database.Connect(adminConfig)
		if adminDB != nil {
			adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbConfig.DBName))
			adminDB.Close()
		}
	})

	if err := migration.NewMigrator(testDB).Run(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	prefRepo := repository.NewPreferenceRepository(testDB)
	prefCache := cache.NewMemoryPreferenceCache(time.Minute)
	t.Cleanup(func() { prefCache.Close() })

	preferenceService := service.NewPreferenceService(prefRepo, prefCache)
	estimatorService := service.NewEstimatorService(preferenceService, estimator.Lenient, 2*time.Second)

	authService, err := service.NewAuthService(ctx, repository.NewUserRepository(testDB), service.AuthOptions{})
	if err != nil {
		t.Fatalf("Failed to start auth service: %v", err)
	}
	if err := authService.CreateUser(ctx, "testuser", "testpassword"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := handler.NewRouter(handler.RouterDeps{
		Version:     "integration",
		DB:          testDB,
		Estimator:   estimatorService,
		Preferences: preferenceService,
		Excel:       service.NewExcelGenerator(),
		Auth:        authService,
	})

	return &TestContext{
		DB:          testDB,
		Router:      router,
		AuthService: authService,
		Estimator:   estimatorService,
		Preferences: preferenceService,
		Repo:        prefRepo,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// authenticateUser performs login and keeps the session cookie and CSRF token
func (tc *TestContext) authenticateUser(t *testing.T, username, password string) {
	t.Helper()

	jsonData, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, _ := http.NewRequest("POST", "/api/auth/login", bytes.NewReader(jsonData))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	tc.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Login failed with status %d: %s", w.Code, w.Body.String())
	}

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "session_id" {
			tc.SessionCookie = cookie
			break
		}
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if token, ok := response["csrf_token"].(string); ok {
		tc.CSRFToken = token
	}
}

// makeAuthenticatedRequest creates a JSON request carrying the session and CSRF token
func (tc *TestContext) makeAuthenticatedRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if tc.SessionCookie != nil {
		req.AddCookie(tc.SessionCookie)
	}
	if tc.CSRFToken != "" {
		req.Header.Set("X-CSRF-Token", tc.CSRFToken)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (tc *TestContext) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tc.Router.ServeHTTP(w, req)
	return w
}

// TestCompleteUserWorkflow covers login, empty widget, submit, save and pre-filled re-render
func TestCompleteUserWorkflow(t *testing.T) {
	tc := setupTestContext(t)
	tc.authenticateUser(t, "testuser", "testpassword")

	t.Run("EmptyWidget", func(t *testing.T) {
		req := tc.makeAuthenticatedRequest("GET", "/widget", nil)
		w := tc.serve(req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `id="hourly_rate" name="hourlyRate" type="number" step="any" min="0" value=""`) {
			t.Error("Expected empty hourly rate on first render")
		}
	})

	t.Run("SubmitWidget", func(t *testing.T) {
		form := url.Values{
			"optimistic":           {"4"},
			"likely":               {"8"},
			"pessimistic":          {"16"},
			"hourlyRate":           {"50.9"},
			"contractorFeePercent": {"20"},
			"csrf_token":           {tc.CSRFToken},
		}
		req, _ := http.NewRequest("POST", "/widget", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(tc.SessionCookie)

		w := tc.serve(req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `id="estimate_hours" type="text" readonly="readonly" value="8.5"`) {
			t.Error("Expected rounded PERT hours in the widget")
		}
	})

	t.Run("SavedRatesArePersisted", func(t *testing.T) {
		tc.Estimator.Wait()

		pref, err := tc.Repo.Get(context.Background(), "testuser")
		if err != nil {
			t.Fatalf("Failed to read preference: %v", err)
		}
		if pref == nil {
			t.Fatal("Expected stored preference")
		}
		if pref.HourlyRate != 50 || pref.ContractorFeePercent != 20 {
			t.Errorf("Expected {50, 20}, got {%d, %d}", pref.HourlyRate, pref.ContractorFeePercent)
		}
	})

	t.Run("WidgetIsPrefilled", func(t *testing.T) {
		w := tc.serve(tc.makeAuthenticatedRequest("GET", "/widget", nil))
		if !strings.Contains(w.Body.String(), `name="hourlyRate" type="number" step="any" min="0" value="50"`) {
			t.Error("Expected saved hourly rate in the widget")
		}
	})
}

// TestConcurrentSavesLastWriteWins fires many saves for one user and checks one row remains
func TestConcurrentSavesLastWriteWins(t *testing.T) {
	tc := setupTestContext(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(rate int) {
			defer wg.Done()
			if err := tc.Preferences.Save(ctx, "concurrent-user", float64(rate), 10); err != nil {
				t.Errorf("Save %d failed: %v", rate, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := tc.Repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count preferences: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 stored row, got %d", count)
	}

	// Last write wins: a final sequential save is what the store holds
	if err := tc.Preferences.Save(ctx, "concurrent-user", 99, 1); err != nil {
		t.Fatalf("Final save failed: %v", err)
	}
	pref, err := tc.Repo.Get(ctx, "concurrent-user")
	if err != nil || pref == nil {
		t.Fatalf("Failed to read preference: %v", err)
	}
	if pref.HourlyRate != 99 || pref.ContractorFeePercent != 1 {
		t.Errorf("Expected {99, 1}, got {%d, %d}", pref.HourlyRate, pref.ContractorFeePercent)
	}
}

// TestConcurrentUsers runs estimates for several logged-in users at once
func TestConcurrentUsers(t *testing.T) {
	tc := setupTestContext(t)
	ctx := context.Background()

	const users = 5
	for i := 0; i < users; i++ {
		if err := tc.AuthService.CreateUser(ctx, fmt.Sprintf("user%d", i), "password123"); err != nil {
			t.Fatalf("Failed to create user%d: %v", i, err)
		}
	}

	clients := make([]*TestContext, users)
	for i := range clients {
		clients[i] = &TestContext{Router: tc.Router}
		clients[i].authenticateUser(t, fmt.Sprintf("user%d", i), "password123")
	}

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			client := clients[n]
			body := map[string]interface{}{
				"optimistic": 1, "likely": 2, "pessimistic": 3,
				"hourlyRate": 10 * (n + 1), "contractorFeePercent": n,
			}
			w := client.serve(client.makeAuthenticatedRequest("POST", "/api/estimate", body))
			if w.Code != http.StatusOK {
				errs <- fmt.Errorf("user%d: status %d: %s", n, w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	tc.Estimator.Wait()

	for i := 0; i < users; i++ {
		pref, err := tc.Repo.Get(ctx, fmt.Sprintf("user%d", i))
		if err != nil || pref == nil {
			t.Fatalf("user%d: expected stored preference, err=%v", i, err)
		}
		if pref.HourlyRate != int64(10*(i+1)) {
			t.Errorf("user%d: expected rate %d, got %d", i, 10*(i+1), pref.HourlyRate)
		}
	}
}

// TestShutdownDrainsPendingSaves checks that saves dispatched before shutdown reach the database
func TestShutdownDrainsPendingSaves(t *testing.T) {
	tc := setupTestContext(t)
	tc.authenticateUser(t, "testuser", "testpassword")

	body := map[string]interface{}{"likely": 10, "hourlyRate": 42, "contractorFeePercent": 5}
	w := tc.serve(tc.makeAuthenticatedRequest("POST", "/api/estimate", body))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tc.Estimator.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	pref, err := tc.Repo.Get(context.Background(), "testuser")
	if err != nil || pref == nil {
		t.Fatalf("Expected stored preference after shutdown, err=%v", err)
	}
	if pref.HourlyRate != 42 {
		t.Errorf("Expected rate 42, got %d", pref.HourlyRate)
	}

	// After shutdown estimates still compute, saves are dropped
	w = tc.serve(tc.makeAuthenticatedRequest("POST", "/api/estimate", map[string]interface{}{"hourlyRate": 7}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 after shutdown, got %d", w.Code)
	}
	pref, _ = tc.Repo.Get(context.Background(), "testuser")
	if pref == nil || pref.HourlyRate != 42 {
		t.Error("Expected no save after shutdown")
	}
}

// TestErrorScenarios covers rejected saves and missing sessions
func TestErrorScenarios(t *testing.T) {
	tc := setupTestContext(t)
	tc.authenticateUser(t, "testuser", "testpassword")

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"NegativeRate", map[string]interface{}{"hourlyRate": -1}, http.StatusBadRequest},
		{"UnexpectedField", map[string]interface{}{"hourlyRate": 1, "user_id": "someone"}, http.StatusBadRequest},
		{"Valid", map[string]interface{}{"hourlyRate": 1, "contractorFeePercent": 2}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tc.serve(tc.makeAuthenticatedRequest("POST", "/api/preferences", tt.body))
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}

	t.Run("NoSession", func(t *testing.T) {
		anonymous := &TestContext{Router: tc.Router}
		w := anonymous.serve(anonymous.makeAuthenticatedRequest("GET", "/api/preferences", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}
