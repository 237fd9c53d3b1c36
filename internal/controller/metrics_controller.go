package controller

import (
	"github.com/Mirvisek/RiseGen/internal/middleware"
	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController exposes the prometheus registry to super admins only.
type MetricsController struct {
	router   *gin.RouterGroup
	gatherer prometheus.Gatherer
	sessions middleware.SessionLookup
}

func NewMetricsController(router *gin.RouterGroup, gatherer prometheus.Gatherer, sessions middleware.SessionLookup) *MetricsController {
	return &MetricsController{
		router:   router,
		gatherer: gatherer,
		sessions: sessions,
	}
}

func (mc *MetricsController) SetupRoutes() {
	mc.router.GET("/metrics",
		middleware.RequireRoles(mc.sessions, model.RoleSuperAdmin),
		gin.WrapH(promhttp.HandlerFor(mc.gatherer, promhttp.HandlerOpts{})),
	)
}
