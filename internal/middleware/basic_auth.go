package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Session represents a user session
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BasicAuthConfig contains configuration for basic authentication
type BasicAuthConfig struct {
	Users           map[string]string // username -> password hash
	SessionDuration time.Duration     // session duration
	CookieName      string            // session cookie name
	CookieDomain    string            // cookie domain
	CookieSecure    bool              // secure cookie flag
	CookieHTTPOnly  bool              // httponly cookie flag
}

// BasicAuthMiddleware handles basic authentication with sessions
type BasicAuthMiddleware struct {
	mu       sync.RWMutex
	config   BasicAuthConfig
	sessions map[string]*Session // sessionID -> Session
}

// AddUser adds a user to the middleware's user map
func (m *BasicAuthMiddleware) AddUser(username, passwordHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Users[username] = passwordHash
}

// RemoveUser removes a user from the middleware's user map
func (m *BasicAuthMiddleware) RemoveUser(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.config.Users, username)
}

// ClearUsers clears all users from the middleware
func (m *BasicAuthMiddleware) ClearUsers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Users = make(map[string]string)
}

// NewBasicAuthMiddleware creates a new basic auth middleware
func NewBasicAuthMiddleware(config BasicAuthConfig) *BasicAuthMiddleware {
	// Set defaults
	if config.SessionDuration == 0 {
		config.SessionDuration = 24 * time.Hour
	}
	if config.CookieName == "" {
		config.CookieName = "session_id"
	}
	if config.Users == nil {
		config.Users = make(map[string]string)
	}

	return &BasicAuthMiddleware{
		config:   config,
		sessions: make(map[string]*Session),
	}
}

// HashPassword creates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateSessionID generates a secure random session ID
func (m *BasicAuthMiddleware) generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// CreateSession creates a new session for the user.
// The username is the user identity used as the preference key.
func (m *BasicAuthMiddleware) CreateSession(username string) (string, error) {
	sessionID, err := m.generateSessionID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &Session{
		UserID:    username,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.SessionDuration),
	}

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()
	return sessionID, nil
}

// GetSession retrieves a session by ID
func (m *BasicAuthMiddleware) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()
	if !exists {
		return nil, false
	}

	// Check if session is expired
	if time.Now().After(session.ExpiresAt) {
		m.DeleteSession(sessionID)
		return nil, false
	}

	return session, true
}

// DeleteSession removes a session
func (m *BasicAuthMiddleware) DeleteSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// ValidateCredentials checks if username and password are valid
func (m *BasicAuthMiddleware) ValidateCredentials(username, password string) bool {
	m.mu.RLock()
	hash, exists := m.config.Users[username]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	return CheckPassword(password, hash)
}

// SetSessionCookie writes the session cookie
func (m *BasicAuthMiddleware) SetSessionCookie(c *gin.Context, sessionID string) {
	c.SetCookie(
		m.config.CookieName,
		sessionID,
		int(m.config.SessionDuration.Seconds()),
		"/",
		m.config.CookieDomain,
		m.config.CookieSecure,
		m.config.CookieHTTPOnly,
	)
}

// ClearSessionCookie expires the session cookie
func (m *BasicAuthMiddleware) ClearSessionCookie(c *gin.Context) {
	c.SetCookie(
		m.config.CookieName,
		"",
		-1,
		"/",
		m.config.CookieDomain,
		m.config.CookieSecure,
		m.config.CookieHTTPOnly,
	)
}

// SessionID returns the session id from the request cookie
func (m *BasicAuthMiddleware) SessionID(c *gin.Context) (string, bool) {
	sessionID, err := c.Cookie(m.config.CookieName)
	if err != nil || sessionID == "" {
		return "", false
	}
	return sessionID, true
}

// RequireAuth middleware that requires authentication
func (m *BasicAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for session cookie
		sessionID, ok := m.SessionID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Sessão não encontrada",
				"code":    "SESSION_NOT_FOUND",
			})
			return
		}

		// Validate session
		session, valid := m.GetSession(sessionID)
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Sessão inválida ou expirada",
				"code":    "SESSION_INVALID",
			})
			return
		}

		// Add session info to context
		c.Set("session", session)
		setIdentity(c, session.UserID, session.Username)

		c.Next()
	}
}

// CleanupExpiredSessions removes expired sessions (should be called periodically)
func (m *BasicAuthMiddleware) CleanupExpiredSessions() int {
	now := time.Now()
	removed := 0

	m.mu.Lock()
	for sessionID, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, sessionID)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}

// SessionCount returns the number of live sessions
func (m *BasicAuthMiddleware) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
