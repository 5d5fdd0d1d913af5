package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/gin-gonic/gin"
)

const (
	// CSRFTokenHeader carries the token on JSON API calls
	CSRFTokenHeader = "X-CSRF-Token"
	// CSRFFormField carries the token on widget and save-rate-preference form posts
	CSRFFormField = "csrf_token"
	// CSRFCookieName exposes the token to scripts that call the JSON API
	CSRFCookieName = "csrf_token"
	// CSRFTokenLength is the number of random bytes in a token
	CSRFTokenLength = 32
)

// CSRFConfig configures token lifetime and the token cookie
type CSRFConfig struct {
	TokenDuration time.Duration
	CookieDomain  string
	CookieSecure  bool
	CookiePath    string
}

type csrfEntry struct {
	token     string
	expiresAt time.Time
}

func (e csrfEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// CSRFMiddleware keeps one token per user and checks it on state-changing
// requests. The widget embeds the token in its form; API clients send it in
// the X-CSRF-Token header.
type CSRFMiddleware struct {
	config CSRFConfig

	mu     sync.RWMutex
	tokens map[string]csrfEntry // user id -> token
}

// NewCSRFMiddleware creates a CSRF token store
func NewCSRFMiddleware(config CSRFConfig) *CSRFMiddleware {
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}

	return &CSRFMiddleware{
		config: config,
		tokens: make(map[string]csrfEntry),
	}
}

// GenerateToken issues a fresh token for userID, replacing any previous one
func (m *CSRFMiddleware) GenerateToken(userID string) (string, error) {
	raw := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(raw)

	m.mu.Lock()
	m.tokens[userID] = csrfEntry{
		token:     token,
		expiresAt: time.Now().Add(m.config.TokenDuration),
	}
	m.mu.Unlock()

	return token, nil
}

// GetToken returns the live token for userID
func (m *CSRFMiddleware) GetToken(userID string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.tokens[userID]
	m.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return "", false
	}
	return entry.token, true
}

// EnsureToken returns the live token for userID, issuing one when missing.
// The widget calls it on every render to fill its hidden form field.
func (m *CSRFMiddleware) EnsureToken(userID string) (string, error) {
	if token, ok := m.GetToken(userID); ok {
		return token, nil
	}
	return m.GenerateToken(userID)
}

// ValidateToken reports whether token is the live token for userID.
// An expired token is dropped.
func (m *CSRFMiddleware) ValidateToken(userID, token string) bool {
	m.mu.RLock()
	entry, ok := m.tokens[userID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	if entry.expired(time.Now()) {
		m.DeleteToken(userID)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(entry.token), []byte(token)) == 1
}

// DeleteToken revokes the token of userID, on logout
func (m *CSRFMiddleware) DeleteToken(userID string) {
	m.mu.Lock()
	delete(m.tokens, userID)
	m.mu.Unlock()
}

// CleanupExpiredTokens drops expired tokens and returns how many were removed
func (m *CSRFMiddleware) CleanupExpiredTokens() int {
	now := time.Now()
	removed := 0

	m.mu.Lock()
	for userID, entry := range m.tokens {
		if entry.expired(now) {
			delete(m.tokens, userID)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}

// SetTokenCookie sets the token cookie after login. It is readable by scripts.
func (m *CSRFMiddleware) SetTokenCookie(c *gin.Context, token string) {
	m.setCookie(c, token, int(m.config.TokenDuration.Seconds()))
}

// ClearTokenCookie removes the token cookie on logout
func (m *CSRFMiddleware) ClearTokenCookie(c *gin.Context) {
	m.setCookie(c, "", -1)
}

func (m *CSRFMiddleware) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(CSRFCookieName, value, maxAge, m.config.CookiePath, m.config.CookieDomain, m.config.CookieSecure, false)
}

// RequireCSRF rejects POST, PUT, PATCH and DELETE requests whose token does
// not match the one issued to the current user. It must run after RequireAuth.
// The cookie is never accepted as proof, only the header or the form field.
func (m *CSRFMiddleware) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		userID := UserID(c)
		if userID == "" {
			abortCSRF(c, http.StatusUnauthorized, "SESSION_NOT_FOUND", "Sessão não encontrada")
			return
		}

		token := requestToken(c)
		if token == "" {
			abortCSRF(c, http.StatusForbidden, "CSRF_TOKEN_MISSING", "Token CSRF ausente")
			return
		}

		if !m.ValidateToken(userID, token) {
			logger.FromGin(c).Warn().Str("path", c.Request.URL.Path).Msg("CSRF token rejected")
			abortCSRF(c, http.StatusForbidden, "CSRF_TOKEN_INVALID", "Token CSRF inválido ou expirado")
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// requestToken reads the header first, then the form field of form posts
func requestToken(c *gin.Context) string {
	if token := c.GetHeader(CSRFTokenHeader); token != "" {
		return token
	}
	switch c.ContentType() {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return c.PostForm(CSRFFormField)
	}
	return ""
}

func abortCSRF(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
