package middleware

import (
	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/gin-gonic/gin"
)

var UnauthorizedBody = gin.H{"error": "Unauthorized"}

// Session returns the session the gatekeeper already loaded for this request
// or looks it up from the cookie.
func Session(c *gin.Context, sessions SessionLookup) model.Session {
	if value, exists := c.Get(sessionContextKey); exists {
		if session, ok := value.(model.Session); ok {
			return session
		}
	}

	session, err := sessions.Lookup(c.Request)

	if err != nil {
		return model.Session{}
	}

	c.Set(sessionContextKey, session)
	return session
}

// RequireRoles rejects requests without an authenticated session holding one
// of roles. Used on API routes the gatekeeper does not see.
func RequireRoles(sessions SessionLookup, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := Session(c, sessions)

		if !session.Authenticated || !session.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(401, UnauthorizedBody)
			return
		}

		c.Next()
	}
}
