package services

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService() *SessionService {
	return NewSessionService(SessionServiceConfig{
		Secret: "test-secret",
		TTL:    time.Hour,
	})
}

func TestSessionIssueAndLookup(t *testing.T) {
	sessions := newTestSessionService()

	token, err := sessions.Issue(model.User{
		ID:                 7,
		Email:              "admin@risegen.pl",
		Roles:              "SUPERADMIN, EDITOR",
		MustChangePassword: true,
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin/dashboard", nil)
	req.AddCookie(sessions.Cookie(token))

	session, err := sessions.Lookup(req)
	require.NoError(t, err)

	assert.True(t, session.Authenticated)
	assert.Equal(t, int64(7), session.UserID)
	assert.Equal(t, "admin@risegen.pl", session.Email)
	assert.Equal(t, []string{"SUPERADMIN", "EDITOR"}, session.Roles)
	assert.True(t, session.MustChangePassword)
	assert.True(t, session.HasAnyRole(model.RoleAdmin, model.RoleEditor))
}

func TestSessionLookupFailuresAreUnauthenticated(t *testing.T) {
	sessions := newTestSessionService()

	t.Run("no cookie", func(t *testing.T) {
		session, err := sessions.Lookup(httptest.NewRequest("GET", "/", nil))
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.False(t, session.Authenticated)
	})

	t.Run("garbage token", func(t *testing.T) {
		session, err := sessions.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.False(t, session.Authenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSessionService(SessionServiceConfig{Secret: "other", TTL: time.Hour})
		token, err := other.Issue(model.User{ID: 1, Roles: "ADMIN"})
		require.NoError(t, err)

		session, err := sessions.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.False(t, session.Authenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := sessions.Issue(model.User{ID: 1, Roles: "ADMIN"})
		require.NoError(t, err)

		sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { sessions.now = time.Now }()

		_, err = sessions.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}

func TestSessionIssueRequiresSecret(t *testing.T) {
	sessions := NewSessionService(SessionServiceConfig{TTL: time.Hour})
	_, err := sessions.Issue(model.User{ID: 1})
	assert.Error(t, err)
}
