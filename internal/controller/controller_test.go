package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Mirvisek/RiseGen/internal/model"
	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	session model.Session
}

func (s staticSessions) Lookup(r *http.Request) (model.Session, error) {
	if !s.session.Authenticated {
		return model.Session{}, errors.New("no cookie")
	}
	return s.session, nil
}

func sessionWithRoles(roles ...string) staticSessions {
	return staticSessions{session: model.Session{Authenticated: true, UserID: 1, Roles: roles}}
}

func newTestDatabase(t *testing.T) *services.DatabaseService {
	t.Helper()

	database := services.NewDatabaseService(services.DatabaseServiceConfig{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})

	require.NoError(t, database.Init())
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func newTestRouter() (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router, router.Group("/api")
}

func doJSON(t *testing.T, router http.Handler, method string, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}
