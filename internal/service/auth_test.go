package service

import (
	"context"
	"testing"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *repository.UserRepository) {
	t.Helper()
	repo := repository.NewUserRepository(setupTestDB(t))
	svc, err := NewAuthService(context.Background(), repo, AuthOptions{SessionDuration: time.Hour})
	require.NoError(t, err)
	return svc, repo
}

func TestCreateUserAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthService(t)

	require.NoError(t, svc.CreateUser(ctx, "alice", "secret123"))
	assert.True(t, svc.ValidateCredentials("alice", "secret123"))
	assert.False(t, svc.ValidateCredentials("alice", "wrong"))

	user, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	assert.ErrorIs(t, svc.CreateUser(ctx, "alice", "secret123"), ErrUserAlreadyExists)
	assert.ErrorIs(t, svc.CreateUser(ctx, "a", "secret123"), ErrInvalidUsername)
	assert.ErrorIs(t, svc.CreateUser(ctx, "bob", "123"), ErrInvalidPassword)
}

func TestUsersAreLoadedOnStart(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthService(t)
	require.NoError(t, svc.CreateUser(ctx, "alice", "secret123"))

	restarted, err := NewAuthService(ctx, repo, AuthOptions{})
	require.NoError(t, err)
	assert.True(t, restarted.ValidateCredentials("alice", "secret123"))
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)

	created, err := svc.EnsureUser(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureUser(ctx, "admin", "other123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, svc.ValidateCredentials("admin", "admin123"), "senha existente é mantida")
}

func TestUpdateUserPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	require.NoError(t, svc.CreateUser(ctx, "alice", "secret123"))

	require.NoError(t, svc.UpdateUserPassword(ctx, "alice", "newsecret"))
	assert.True(t, svc.ValidateCredentials("alice", "newsecret"))
	assert.False(t, svc.ValidateCredentials("alice", "secret123"))

	assert.ErrorIs(t, svc.UpdateUserPassword(ctx, "nobody", "newsecret"), ErrUserNotFound)
}
