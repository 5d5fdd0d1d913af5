package handler

import (
	"github.com/cleberrangel/pert-estimator/internal/database"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/cleberrangel/pert-estimator/internal/widget"
	"github.com/gin-gonic/gin"
)

// RouterDeps reúne as dependências das rotas
type RouterDeps struct {
	Version string
	DB      *database.DB
	// Cache é nil quando o cache de preferências é local
	Cache metrics.Pinger

	Estimator   *service.EstimatorService
	Preferences *service.PreferenceService
	Excel       *service.ExcelGenerator

	// Auth habilita o login embutido. Quando nil a identidade vem do header IdentityHeader.
	Auth           *service.AuthService
	IdentityHeader string

	SaveLimiter *middleware.UserRateLimiter
}

// NewRouter monta o router com todas as rotas
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID()) // Request ID + logging estruturado
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware("/api/preferences", "/api/estimate", "/api/estimate/export", "/widget"))
	r.SetHTMLTemplate(widget.Template())

	// Health e métricas (público)
	healthHandler := NewHealthHandler(deps.DB, deps.Cache, deps.Version)
	r.GET("/health", healthHandler.DetailedHealthCheck)
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/metrics", healthHandler.GetMetrics)
	r.GET("/metrics/prometheus", gin.WrapH(metrics.PrometheusHandler(metrics.Get())))
	r.GET("/debug/memory", healthHandler.DebugMemory)

	// Identidade do usuário atual
	var identity []gin.HandlerFunc
	var tokens TokenSource
	if deps.Auth != nil {
		authHandler := NewAuthHandler(deps.Auth)
		authMiddleware := deps.Auth.GetAuthMiddleware()
		csrfMiddleware := deps.Auth.GetCSRFMiddleware()

		r.POST("/api/auth/login", authHandler.Login)

		auth := r.Group("/api/auth")
		auth.Use(authMiddleware.RequireAuth(), csrfMiddleware.RequireCSRF())
		{
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authHandler.GetCurrentUser)
			auth.PUT("/password", authHandler.UpdatePassword)
		}

		identity = []gin.HandlerFunc{authMiddleware.RequireAuth(), csrfMiddleware.RequireCSRF()}
		tokens = csrfMiddleware
	} else {
		identity = []gin.HandlerFunc{middleware.HeaderIdentity(deps.IdentityHeader)}
	}

	widgetHandler := NewWidgetHandler(deps.Estimator, deps.Preferences, tokens)
	estimateHandler := NewEstimateHandler(deps.Estimator, deps.Excel)
	preferenceHandler := NewPreferenceHandler(deps.Preferences)

	saveLimit := func(c *gin.Context) { c.Next() }
	if deps.SaveLimiter != nil {
		saveLimit = deps.SaveLimiter.Middleware()
	}

	app := r.Group("/")
	app.Use(identity...)
	{
		app.GET("/widget", widgetHandler.Show)
		app.POST("/widget", widgetHandler.Submit)

		app.POST("/api/estimate", estimateHandler.Estimate)
		app.POST("/api/estimate/export", estimateHandler.Export)

		app.GET("/api/preferences", preferenceHandler.GetPreferences)
		app.POST("/api/preferences", saveLimit, preferenceHandler.SavePreferences)
	}

	return r
}
