package middleware

import (
	"net/http"

	"github.com/Mirvisek/RiseGen/internal/gatekeeper"
	"github.com/Mirvisek/RiseGen/internal/metrics"
	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionContextKey = "session"

type SessionLookup interface {
	Lookup(r *http.Request) (model.Session, error)
}

type GatekeeperMiddleware struct {
	gatekeeper *gatekeeper.Gatekeeper
	sessions   SessionLookup
	metrics    *metrics.Metrics
}

func NewGatekeeperMiddleware(gatekeeper *gatekeeper.Gatekeeper, sessions SessionLookup, metrics *metrics.Metrics) *GatekeeperMiddleware {
	return &GatekeeperMiddleware{
		gatekeeper: gatekeeper,
		sessions:   sessions,
		metrics:    metrics,
	}
}

func (m *GatekeeperMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if !gatekeeper.Matches(path) {
			c.Next()
			return
		}

		request := gatekeeper.NewRequest(c.Request, c.ClientIP(), func() (model.Session, error) {
			session, err := m.sessions.Lookup(c.Request)
			if err != nil {
				log.Trace().Err(err).Str("path", path).Msg("request has no valid session")
			}
			return session, err
		})

		decision := m.gatekeeper.Decide(request)

		m.metrics.RecordDecision(decision.Rule, decision.Outcome.String())

		for key, values := range decision.Headers {
			c.Header(key, values[0])
		}

		if !decision.SkipSecurityHeaders {
			for key, values := range m.gatekeeper.SecurityHeaders() {
				c.Header(key, values[0])
			}
		}

		switch decision.Outcome {
		case gatekeeper.Redirect:
			c.Redirect(decision.Status, decision.Location)
			c.Abort()
			return
		case gatekeeper.Reject:
			c.AbortWithStatusJSON(decision.Status, decision.Body)
			return
		}

		if request.SessionLoaded() {
			c.Set(sessionContextKey, request.Session())
		}

		c.Request.Header.Set("X-Pathname", path)
		c.Next()
	}
}
