package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) (time.Duration, error) {
	return 2 * time.Millisecond, p.err
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		pinger  stubPinger
		missing []string
		code    int
		status  string
	}{
		{"healthy", stubPinger{}, nil, 200, "healthy"},
		{"degraded", stubPinger{}, []string{"RESEND_API_KEY"}, 503, "degraded"},
		{"unhealthy", stubPinger{err: errors.New("database is locked")}, nil, 500, "unhealthy"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			router, api := newTestRouter()
			NewHealthController(api, test.pinger, func() []string { return test.missing }).SetupRoutes()

			recorder := doJSON(t, router, "GET", "/api/health", nil)

			assert.Equal(t, test.code, recorder.Code)
			body := decodeBody(t, recorder)
			assert.Equal(t, test.status, body["status"])

			if test.code != 500 {
				checks := body["checks"].(map[string]any)
				assert.Equal(t, "2ms", checks["database"].(map[string]any)["latency"])
			}
		})
	}
}

func TestHealthDatabase(t *testing.T) {
	database := newTestDatabase(t)
	router, api := newTestRouter()
	NewHealthController(api, database, func() []string { return nil }).SetupRoutes()

	recorder := doJSON(t, router, "GET", "/api/health", nil)
	assert.Equal(t, 200, recorder.Code)
}
