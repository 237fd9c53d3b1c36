package controller

import (
	"context"

	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type DripRunner interface {
	Run(ctx context.Context) (services.DripReport, error)
}

type DripController struct {
	router *gin.RouterGroup
	drip   DripRunner
}

func NewDripController(router *gin.RouterGroup, drip DripRunner) *DripController {
	return &DripController{
		router: router,
		drip:   drip,
	}
}

func (dc *DripController) SetupRoutes() {
	dc.router.POST("/cron/drip", dc.runDrip)
}

// runDrip always answers 202, the page that fires it never reads the body.
func (dc *DripController) runDrip(c *gin.Context) {
	report, err := dc.drip.Run(context.WithoutCancel(c.Request.Context()))

	if err != nil {
		log.Error().Err(err).Msg("drip run failed")
		c.JSON(202, gin.H{
			"status":  202,
			"message": err.Error(),
		})
		return
	}

	c.JSON(202, gin.H{
		"status": 202,
		"report": report,
	})
}
