package controller

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/Mirvisek/RiseGen/internal/metrics"
	"github.com/Mirvisek/RiseGen/internal/middleware"
	"github.com/Mirvisek/RiseGen/internal/model"
	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type BackupControllerConfig struct {
	CronSecret string
	// OnDemand applies to administrator backups, Scheduled to cron backups.
	OnDemand  services.RetentionPolicy
	Scheduled services.RetentionPolicy
}

type BackupController struct {
	config   BackupControllerConfig
	router   *gin.RouterGroup
	backups  *services.BackupService
	sessions middleware.SessionLookup
	metrics  *metrics.Metrics
}

func NewBackupController(config BackupControllerConfig, router *gin.RouterGroup, backups *services.BackupService, sessions middleware.SessionLookup, metrics *metrics.Metrics) *BackupController {
	return &BackupController{
		config:   config,
		router:   router,
		backups:  backups,
		sessions: sessions,
		metrics:  metrics,
	}
}

func (bc *BackupController) SetupRoutes() {
	superAdmin := middleware.RequireRoles(bc.sessions, model.RoleSuperAdmin)

	bc.router.POST("/backup", superAdmin, bc.createBackup)
	bc.router.GET("/backup", superAdmin, bc.listBackups)
	bc.router.GET("/cron/backup", bc.cronBackup)
}

func (bc *BackupController) createBackup(c *gin.Context) {
	bc.runBackup(c, "manual", bc.config.OnDemand)
}

func (bc *BackupController) cronBackup(c *gin.Context) {
	token := c.Query("token")

	if bc.config.CronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(bc.config.CronSecret)) != 1 {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("rejected scheduled backup with bad token")
		c.JSON(401, middleware.UnauthorizedBody)
		return
	}

	bc.runBackup(c, "scheduled", bc.config.Scheduled)
}

func (bc *BackupController) runBackup(c *gin.Context, trigger string, policy services.RetentionPolicy) {
	// a client disconnect must not abort a half written copy
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := bc.backups.CreateBackup(ctx, policy)

	bc.metrics.RecordBackup(trigger, err)

	if err != nil {
		log.Error().Err(err).Str("trigger", trigger).Msg("backup failed")

		message := "Backup failed"
		if errors.Is(err, services.ErrSourceNotFound) {
			message = "Database file not found. Check your database configuration."
		}

		c.JSON(500, gin.H{
			"status":  500,
			"message": message,
			"error":   err.Error(),
		})
		return
	}

	bc.metrics.RecordCleanupDeleted(len(result.Cleanup.Deleted))

	log.Info().
		Str("trigger", trigger).
		Str("backup", result.Backup.Name).
		Str("size", result.Backup.SizeFormatted).
		Int("deleted", len(result.Cleanup.Deleted)).
		Msg("backup created")

	c.JSON(200, gin.H{
		"status":        200,
		"message":       "Backup created",
		"backup":        result.Backup.Name,
		"size":          result.Backup.Size,
		"sizeFormatted": result.Backup.SizeFormatted,
		"timestamp":     result.Backup.CreatedAt.Format(time.RFC3339),
		"mirrored":      result.Mirrored,
		"deleted":       len(result.Cleanup.Deleted),
		"retention":     policy.String(),
	})
}

func (bc *BackupController) listBackups(c *gin.Context) {
	backups, err := bc.backups.ListBackups()

	if err != nil {
		log.Error().Err(err).Msg("failed to list backups")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Failed to list backups",
		})
		return
	}

	totalSize := services.TotalBackupSize(backups)

	c.JSON(200, gin.H{
		"status":             200,
		"backups":            backups,
		"total":              len(backups),
		"totalSize":          totalSize,
		"totalSizeFormatted": humanize.IBytes(uint64(totalSize)),
	})
}
