package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/repository/memory"
	"github.com/example/storefront/internal/utils"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.New(), "secret", time.Hour)

	user, token, err := auth.Register(ctx, "Ana", " Ana@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "password123", user.PasswordHash)

	id, err := utils.ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	logged, token, err := auth.Login(ctx, "ANA@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotEmpty(t, token)
}

func TestAuthService_Rejections(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.New(), "secret", time.Hour)
	_, _, err := auth.Register(ctx, "Ana", "ana@example.com", "password123")
	require.NoError(t, err)

	_, _, err = auth.Register(ctx, "Other", "ANA@example.com", "password456")
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, err = auth.Register(ctx, "", "new@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, _, err = auth.Register(ctx, "New", "nope", "password123")
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, _, err = auth.Register(ctx, "New", "new@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	_, _, err = auth.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
