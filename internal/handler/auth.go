package handler

import (
	"errors"
	"net/http"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/metrics"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login handles user login requests
// @Summary Login
// @Description Starts a session and returns the CSRF token for state-changing requests
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var loginRequest struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}

	if err := c.ShouldBind(&loginRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Dados de login inválidos",
			"details": err.Error(),
			"code":    "INVALID_INPUT",
		})
		return
	}

	// Sanitize inputs
	loginRequest.Username = middleware.SanitizeUsername(loginRequest.Username)
	loginRequest.Password = middleware.SanitizePassword(loginRequest.Password)

	if !middleware.ValidateUsername(loginRequest.Username) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Nome de usuário inválido",
			"code":    "INVALID_USERNAME",
		})
		return
	}

	authMiddleware := h.authService.GetAuthMiddleware()
	if !authMiddleware.ValidateCredentials(loginRequest.Username, loginRequest.Password) {
		logger.Audit(c.Request.Context(), logger.AuditEvent{
			Action:   logger.AuditActionLoginFailed,
			Username: loginRequest.Username,
			Resource: "auth",
			ClientIP: c.ClientIP(),
			Success:  false,
			Error:    "invalid credentials",
		})
		metrics.Get().IncrementLogin(false)

		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Credenciais inválidas",
			"code":    "INVALID_CREDENTIALS",
		})
		return
	}

	sessionID, err := authMiddleware.CreateSession(loginRequest.Username)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Msg("Erro ao criar sessão")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro interno do servidor",
			"code":    "SESSION_CREATE_ERROR",
		})
		return
	}

	// Sessions are keyed by username, so the CSRF token is too
	csrfMiddleware := h.authService.GetCSRFMiddleware()
	csrfToken, err := csrfMiddleware.GenerateToken(loginRequest.Username)
	if err != nil {
		authMiddleware.DeleteSession(sessionID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro ao gerar token CSRF",
			"code":    "CSRF_TOKEN_ERROR",
		})
		return
	}

	authMiddleware.SetSessionCookie(c, sessionID)
	csrfMiddleware.SetTokenCookie(c, csrfToken)

	logger.Audit(c.Request.Context(), logger.AuditEvent{
		Action:   logger.AuditActionLogin,
		UserID:   loginRequest.Username,
		Username: loginRequest.Username,
		Resource: "auth",
		ClientIP: c.ClientIP(),
		Success:  true,
	})
	metrics.Get().IncrementLogin(true)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Login realizado com sucesso",
		"csrf_token": csrfToken,
		"user": gin.H{
			"username": loginRequest.Username,
		},
	})
}

// Logout handles user logout requests
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	authMiddleware := h.authService.GetAuthMiddleware()
	csrfMiddleware := h.authService.GetCSRFMiddleware()

	if sessionID, ok := authMiddleware.SessionID(c); ok {
		if session, valid := authMiddleware.GetSession(sessionID); valid {
			csrfMiddleware.DeleteToken(session.UserID)

			logger.Audit(c.Request.Context(), logger.AuditEvent{
				Action:   logger.AuditActionLogout,
				UserID:   session.UserID,
				Username: session.Username,
				Resource: "auth",
				ClientIP: c.ClientIP(),
				Success:  true,
			})
		}
		authMiddleware.DeleteSession(sessionID)
	}

	authMiddleware.ClearSessionCookie(c)
	csrfMiddleware.ClearTokenCookie(c)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout realizado com sucesso",
	})
}

// GetCurrentUser returns information about the currently authenticated user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Sessão não encontrada",
			"code":    "SESSION_NOT_FOUND",
		})
		return
	}

	csrfToken, err := h.authService.GetCSRFMiddleware().EnsureToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro ao gerar token CSRF",
			"code":    "CSRF_TOKEN_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"csrf_token": csrfToken,
		"user": gin.H{
			"username": c.GetString("username"),
			"user_id":  userID,
		},
	})
}

// UpdatePassword updates the current user's password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/password [put]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var request struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Dados inválidos",
			"details": err.Error(),
			"code":    "INVALID_INPUT",
		})
		return
	}

	username := c.GetString("username")
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Usuário não autenticado",
			"code":    "NOT_AUTHENTICATED",
		})
		return
	}

	if !h.authService.ValidateCredentials(username, middleware.SanitizePassword(request.CurrentPassword)) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Senha atual incorreta",
			"code":    "INVALID_CURRENT_PASSWORD",
		})
		return
	}

	err := h.authService.UpdateUserPassword(c.Request.Context(), username, request.NewPassword)
	switch {
	case errors.Is(err, service.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Nova senha deve ter entre 6 e 128 caracteres",
			"code":    "INVALID_PASSWORD",
		})
		return
	case err != nil:
		logger.FromGin(c).Error().Err(err).Msg("Erro ao atualizar senha")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro interno do servidor",
			"code":    "INTERNAL_ERROR",
		})
		return
	}

	logger.Audit(c.Request.Context(), logger.AuditEvent{
		Action:   logger.AuditActionPasswordChange,
		UserID:   middleware.UserID(c),
		Username: username,
		Resource: "user",
		ClientIP: c.ClientIP(),
		Success:  true,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Senha atualizada com sucesso",
	})
}
