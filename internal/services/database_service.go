package services

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	sqliteMigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migrations
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

type DatabaseServiceConfig struct {
	DatabasePath string
}

type DatabaseService struct {
	config   DatabaseServiceConfig
	database *gorm.DB
}

func NewDatabaseService(config DatabaseServiceConfig) *DatabaseService {
	return &DatabaseService{
		config: config,
	}
}

func (ds *DatabaseService) Init() error {
	gormDB, err := gorm.Open(sqlite.Open(ds.config.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})

	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()

	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(1)

	err = ds.migrateDatabase(sqlDB)

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	ds.database = gormDB
	return nil
}

func (ds *DatabaseService) GetDatabase() *gorm.DB {
	return ds.database
}

func (ds *DatabaseService) Path() string {
	return ds.config.DatabasePath
}

// Ping reports the round trip of a trivial query.
func (ds *DatabaseService) Ping(ctx context.Context) (time.Duration, error) {
	sqlDB, err := ds.database.DB()

	if err != nil {
		return 0, err
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	return time.Since(start), err
}

func (ds *DatabaseService) Close() error {
	if ds.database == nil {
		return nil
	}

	sqlDB, err := ds.database.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (ds *DatabaseService) migrateDatabase(sqlDB *sql.DB) error {
	data, err := iofs.New(migrationsFS, "migrations")

	if err != nil {
		return err
	}

	target, err := sqliteMigrate.WithInstance(sqlDB, &sqliteMigrate.Config{})

	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", data, "risegen", target)

	if err != nil {
		return err
	}

	return migrator.Up()
}

func (ds *DatabaseService) DeleteVisitsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return gorm.G[model.VisitLog](ds.database).Where("created_at < ?", cutoff.UTC()).Delete(ctx)
}

// CleanUpOldVisits runs once immediately and then every interval until ctx
// is cancelled.
func (ds *DatabaseService) CleanUpOldVisits(ctx context.Context, interval time.Duration, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		ds.cleanUpVisits(ctx, retention)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (ds *DatabaseService) cleanUpVisits(ctx context.Context, retention time.Duration) {
	log.Info().Msg("cleaning up old visit logs")

	rowsAffected, err := ds.DeleteVisitsBefore(ctx, time.Now().Add(-retention))

	if err != nil {
		log.Error().Err(err).Msg("failed to clean up old visit logs")
		return
	}

	log.Info().Int("rows_affected", rowsAffected).Msg("old visit logs cleaned up")
}
