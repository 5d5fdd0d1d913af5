package service

import (
	"context"
	"errors"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	"github.com/cleberrangel/pert-estimator/internal/middleware"
	"github.com/cleberrangel/pert-estimator/internal/repository"
)

var (
	ErrUserNotFound      = errors.New("usuário não encontrado")
	ErrUserAlreadyExists = errors.New("usuário já existe")
	ErrInvalidUsername   = errors.New("nome de usuário inválido")
	ErrInvalidPassword   = errors.New("senha deve ter entre 6 e 128 caracteres")
)

// AuthOptions configura sessões e cookies do login embutido
type AuthOptions struct {
	SessionDuration time.Duration
	CookieSecure    bool
}

// AuthService handles authentication business logic.
// It only supplies an identity; there are no roles.
type AuthService struct {
	userRepo       *repository.UserRepository
	authMiddleware *middleware.BasicAuthMiddleware
	csrfMiddleware *middleware.CSRFMiddleware
}

// NewAuthService creates a new authentication service and loads existing users
func NewAuthService(ctx context.Context, userRepo *repository.UserRepository, opts AuthOptions) (*AuthService, error) {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = 24 * time.Hour
	}

	authMiddleware := middleware.NewBasicAuthMiddleware(middleware.BasicAuthConfig{
		Users:           make(map[string]string),
		SessionDuration: opts.SessionDuration,
		CookieName:      "session_id",
		CookieSecure:    opts.CookieSecure,
		CookieHTTPOnly:  true,
	})

	csrfMiddleware := middleware.NewCSRFMiddleware(middleware.CSRFConfig{
		TokenDuration: opts.SessionDuration,
		CookieSecure:  opts.CookieSecure,
		CookiePath:    "/",
	})

	service := &AuthService{
		userRepo:       userRepo,
		authMiddleware: authMiddleware,
		csrfMiddleware: csrfMiddleware,
	}

	if err := service.loadUsersIntoMiddleware(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

// GetAuthMiddleware returns the authentication middleware
func (s *AuthService) GetAuthMiddleware() *middleware.BasicAuthMiddleware {
	return s.authMiddleware
}

// GetCSRFMiddleware returns the CSRF middleware
func (s *AuthService) GetCSRFMiddleware() *middleware.CSRFMiddleware {
	return s.csrfMiddleware
}

// loadUsersIntoMiddleware loads all users from database into middleware
func (s *AuthService) loadUsersIntoMiddleware(ctx context.Context) error {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return err
	}

	s.authMiddleware.ClearUsers()

	for _, user := range users {
		// List omits hashes
		fullUser, err := s.userRepo.GetByUsername(ctx, user.Username)
		if err != nil || fullUser == nil {
			continue
		}
		s.authMiddleware.AddUser(user.Username, fullUser.PasswordHash)
	}

	logger.Global().Debug().Int("users", len(users)).Msg("Users loaded")
	return nil
}

// CreateUser creates a new user with hashed password
func (s *AuthService) CreateUser(ctx context.Context, username, password string) error {
	username = middleware.SanitizeUsername(username)
	password = middleware.SanitizePassword(password)

	if !middleware.ValidateUsername(username) {
		return ErrInvalidUsername
	}
	if !middleware.ValidatePassword(password) {
		return ErrInvalidPassword
	}

	existingUser, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return ErrUserAlreadyExists
	}

	passwordHash, err := middleware.HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := s.userRepo.Create(ctx, username, passwordHash); err != nil {
		return err
	}

	s.authMiddleware.AddUser(username, passwordHash)

	logger.Audit(ctx, logger.AuditEvent{
		Action:   logger.AuditActionUserCreate,
		Username: username,
		Resource: "user",
		Success:  true,
	})
	return nil
}

// EnsureUser creates the user when it does not exist yet. Used to bootstrap an admin account.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	err := s.CreateUser(ctx, username, password)
	if errors.Is(err, ErrUserAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

// UpdateUserPassword updates a user's password
func (s *AuthService) UpdateUserPassword(ctx context.Context, username, newPassword string) error {
	newPassword = middleware.SanitizePassword(newPassword)
	if !middleware.ValidatePassword(newPassword) {
		return ErrInvalidPassword
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	passwordHash, err := middleware.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, username, passwordHash); err != nil {
		return err
	}

	s.authMiddleware.AddUser(username, passwordHash)
	return nil
}

// ValidateCredentials validates username and password
func (s *AuthService) ValidateCredentials(username, password string) bool {
	return s.authMiddleware.ValidateCredentials(username, password)
}

// StartSessionCleanup periodically removes expired sessions and CSRF tokens until ctx ends
func (s *AuthService) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sessions := s.authMiddleware.CleanupExpiredSessions()
				tokens := s.csrfMiddleware.CleanupExpiredTokens()
				if sessions+tokens > 0 {
					logger.Global().Debug().
						Int("sessions", sessions).
						Int("csrf_tokens", tokens).
						Int("active_sessions", s.authMiddleware.SessionCount()).
						Msg("Expired sessions cleaned up")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
