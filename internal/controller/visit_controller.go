package controller

import (
	"strings"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Visit struct {
	Path string `json:"path" binding:"required,max=2048"`
}

type VisitController struct {
	router   *gin.RouterGroup
	database *gorm.DB
}

func NewVisitController(router *gin.RouterGroup, database *gorm.DB) *VisitController {
	return &VisitController{
		router:   router,
		database: database,
	}
}

func (vc *VisitController) SetupRoutes() {
	vc.router.POST("/visit", vc.visit)
}

// IgnoredVisitPath reports paths that are not public pages.
func IgnoredVisitPath(path string) bool {
	return strings.HasPrefix(path, "/api") ||
		strings.HasPrefix(path, "/_next") ||
		strings.HasPrefix(path, "/static") ||
		strings.Contains(path, ".")
}

func (vc *VisitController) visit(c *gin.Context) {
	var visit Visit

	if err := c.ShouldBindJSON(&visit); err != nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Invalid path",
		})
		return
	}

	if IgnoredVisitPath(visit.Path) {
		c.JSON(200, gin.H{
			"status":  200,
			"ignored": true,
		})
		return
	}

	err := gorm.G[model.VisitLog](vc.database).Create(c.Request.Context(), &model.VisitLog{
		Path:      visit.Path,
		CreatedAt: time.Now().UTC(),
	})

	if err != nil {
		log.Error().Err(err).Msg("failed to store visit")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  200,
		"ignored": false,
	})
}
