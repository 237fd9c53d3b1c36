package controller

import (
	"context"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type HealthController struct {
	router    *gin.RouterGroup
	database  Pinger
	missing   func() []string
	startedAt time.Time
}

func NewHealthController(router *gin.RouterGroup, database Pinger, missing func() []string) *HealthController {
	return &HealthController{
		router:    router,
		database:  database,
		missing:   missing,
		startedAt: time.Now(),
	}
}

func (hc *HealthController) SetupRoutes() {
	hc.router.GET("/health", hc.health)
	hc.router.HEAD("/health", hc.health)
}

func (hc *HealthController) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	latency, err := hc.database.Ping(ctx)

	if err != nil {
		log.Error().Err(err).Msg("health check failed to reach database")
		c.JSON(500, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	missing := hc.missing()

	if missing == nil {
		missing = []string{}
	}

	status := "healthy"
	envStatus := "healthy"
	code := 200

	if len(missing) > 0 {
		status = "degraded"
		envStatus = "missing_vars"
		code = 503
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": gin.H{
			"database": gin.H{
				"status":  "healthy",
				"latency": latency.Round(time.Millisecond).String(),
			},
			"env": gin.H{
				"status":  envStatus,
				"missing": missing,
			},
			"system": gin.H{
				"uptime":     int(time.Since(hc.startedAt).Seconds()),
				"timestamp":  time.Now().UTC(),
				"goVersion":  runtime.Version(),
				"goroutines": runtime.NumGoroutine(),
			},
		},
	})
}
