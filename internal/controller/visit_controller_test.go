package controller

import (
	"context"
	"testing"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIgnoredVisitPath(t *testing.T) {
	tests := []struct {
		path    string
		ignored bool
	}{
		{"/", false},
		{"/projekty/nowy-projekt", false},
		{"/api/visit", true},
		{"/_next/data/x.json", true},
		{"/static/logo", true},
		{"/favicon.ico", true},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			assert.Equal(t, test.ignored, IgnoredVisitPath(test.path))
		})
	}
}

func TestVisit(t *testing.T) {
	database := newTestDatabase(t).GetDatabase()
	router, api := newTestRouter()
	NewVisitController(api, database).SetupRoutes()

	recorder := doJSON(t, router, "POST", "/api/visit", map[string]string{"path": "/wydarzenia"})
	require.Equal(t, 200, recorder.Code)
	assert.Equal(t, false, decodeBody(t, recorder)["ignored"])

	recorder = doJSON(t, router, "POST", "/api/visit", map[string]string{"path": "/logo.png"})
	require.Equal(t, 200, recorder.Code)
	assert.Equal(t, true, decodeBody(t, recorder)["ignored"])

	recorder = doJSON(t, router, "POST", "/api/visit", map[string]any{"path": 12})
	assert.Equal(t, 400, recorder.Code)

	visits, err := gorm.G[model.VisitLog](database).Find(context.Background())
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "/wydarzenia", visits[0].Path)
}
