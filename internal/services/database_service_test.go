package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) *DatabaseService {
	t.Helper()

	database := NewDatabaseService(DatabaseServiceConfig{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})

	require.NoError(t, database.Init())
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func TestDatabaseInitIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first := NewDatabaseService(DatabaseServiceConfig{DatabasePath: path})
	require.NoError(t, first.Init())
	require.NoError(t, first.Close())

	second := NewDatabaseService(DatabaseServiceConfig{DatabasePath: path})
	require.NoError(t, second.Init())
	defer second.Close()

	latency, err := second.Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
}

func TestDeleteVisitsBefore(t *testing.T) {
	database := newTestDatabase(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, gorm.G[model.VisitLog](database.GetDatabase()).Create(ctx, &model.VisitLog{
		Path:      "/old",
		CreatedAt: now.Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, gorm.G[model.VisitLog](database.GetDatabase()).Create(ctx, &model.VisitLog{
		Path:      "/new",
		CreatedAt: now.Add(-time.Hour),
	}))

	removed, err := database.DeleteVisitsBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	visits, err := gorm.G[model.VisitLog](database.GetDatabase()).Find(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "/new", visits[0].Path)
}

func TestCleanUpOldVisitsStopsOnCancel(t *testing.T) {
	database := newTestDatabase(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, gorm.G[model.VisitLog](database.GetDatabase()).Create(ctx, &model.VisitLog{
		Path:      "/old",
		CreatedAt: time.Now().UTC().Add(-100 * 24 * time.Hour),
	}))

	done := make(chan struct{})
	go func() {
		database.CleanUpOldVisits(ctx, 24*time.Hour, 90*24*time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		count, err := gorm.G[model.VisitLog](database.GetDatabase()).Count(context.Background(), "*")
		return err == nil && count == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop kept waiting on the ticker after cancellation")
	}
}
