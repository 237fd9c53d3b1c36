package services

import (
	"context"
	"testing"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAuthServiceSeedAndLogin(t *testing.T) {
	database := newTestDatabase(t)
	auth := NewAuthService(database.GetDatabase())
	ctx := context.Background()

	require.NoError(t, auth.SeedSuperAdmin(ctx, "Admin@RiseGen.pl", "initial-password"))
	// second seed is a no-op
	require.NoError(t, auth.SeedSuperAdmin(ctx, "other@risegen.pl", "another-password"))

	count, err := gorm.G[model.User](database.GetDatabase()).Count(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	user, err := auth.Authenticate(ctx, "admin@risegen.pl", "initial-password")
	require.NoError(t, err)
	assert.True(t, user.MustChangePassword)
	assert.Equal(t, []string{model.RoleSuperAdmin}, user.RoleList())

	_, err = auth.Authenticate(ctx, "admin@risegen.pl", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Authenticate(ctx, "nobody@risegen.pl", "initial-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthServiceChangePassword(t *testing.T) {
	database := newTestDatabase(t)
	auth := NewAuthService(database.GetDatabase())
	ctx := context.Background()

	require.NoError(t, auth.SeedSuperAdmin(ctx, "admin@risegen.pl", "initial-password"))
	user, err := auth.Authenticate(ctx, "admin@risegen.pl", "initial-password")
	require.NoError(t, err)

	_, err = auth.ChangePassword(ctx, user.ID, "initial-password", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = auth.ChangePassword(ctx, user.ID, "wrong-password", "a-much-better-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	changed, err := auth.ChangePassword(ctx, user.ID, "initial-password", "a-much-better-password")
	require.NoError(t, err)
	assert.False(t, changed.MustChangePassword)

	user, err = auth.Authenticate(ctx, "admin@risegen.pl", "a-much-better-password")
	require.NoError(t, err)
	assert.False(t, user.MustChangePassword)
}
