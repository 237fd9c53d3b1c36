package controller

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/Mirvisek/RiseGen/internal/middleware"
	"github.com/Mirvisek/RiseGen/internal/model"
	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Subscription struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Name  string `json:"name" binding:"max=100"`
}

type Broadcast struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
}

type NewsletterController struct {
	router     *gin.RouterGroup
	newsletter *services.NewsletterService
	sessions   middleware.SessionLookup
}

func NewNewsletterController(router *gin.RouterGroup, newsletter *services.NewsletterService, sessions middleware.SessionLookup) *NewsletterController {
	return &NewsletterController{
		router:     router,
		newsletter: newsletter,
		sessions:   sessions,
	}
}

func (nc *NewsletterController) SetupRoutes() {
	nc.router.POST("/newsletter/subscribe", nc.subscribe)

	adminGroup := nc.router.Group("/admin/newsletter")
	adminGroup.Use(middleware.RequireRoles(nc.sessions, model.RoleAdmin, model.RoleEditor, model.RoleSuperAdmin))
	adminGroup.POST("/send", nc.send)
	adminGroup.GET("/subscribers", nc.listSubscribers)
	adminGroup.GET("/subscribers/export", nc.exportSubscribers)
	adminGroup.DELETE("/subscribers/:email", nc.deleteSubscriber)
}

func (nc *NewsletterController) subscribe(c *gin.Context) {
	var subscription Subscription

	if err := c.ShouldBindJSON(&subscription); err != nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Invalid email address",
		})
		return
	}

	_, created, err := nc.newsletter.Subscribe(c.Request.Context(), subscription.Email, subscription.Name)

	if err != nil {
		log.Error().Err(err).Msg("failed to subscribe")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	if !created {
		c.JSON(200, gin.H{
			"status":  200,
			"message": "Already subscribed",
		})
		return
	}

	c.JSON(201, gin.H{
		"status":  201,
		"message": "Subscribed",
	})
}

func (nc *NewsletterController) send(c *gin.Context) {
	var broadcast Broadcast

	if err := c.ShouldBindJSON(&broadcast); err != nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Subject and content are required",
		})
		return
	}

	report, err := nc.newsletter.Broadcast(c.Request.Context(), broadcast.Subject, broadcast.Content)

	switch {
	case errors.Is(err, services.ErrNoSubscribers):
		c.JSON(400, gin.H{
			"status":  400,
			"message": "No active subscribers",
		})
		return
	case errors.Is(err, services.ErrMailerNotConfigured):
		c.JSON(503, gin.H{
			"status":  503,
			"message": "Email delivery is not configured",
		})
		return
	case err != nil:
		log.Error().Err(err).Msg("newsletter broadcast failed")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":     200,
		"recipients": report.Recipients,
		"sent":       report.Sent,
		"failed":     report.Failed,
	})
}

func (nc *NewsletterController) listSubscribers(c *gin.Context) {
	subscribers, err := nc.newsletter.List(c.Request.Context())

	if err != nil {
		log.Error().Err(err).Msg("failed to fetch subscribers")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":      200,
		"total":       len(subscribers),
		"subscribers": subscribers,
	})
}

func (nc *NewsletterController) exportSubscribers(c *gin.Context) {
	var buffer bytes.Buffer

	if err := nc.newsletter.ExportCSV(c.Request.Context(), &buffer); err != nil {
		log.Error().Err(err).Msg("failed to export subscribers")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	filename := fmt.Sprintf("subskrybenci-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, "text/csv; charset=utf-8", buffer.Bytes())
}

func (nc *NewsletterController) deleteSubscriber(c *gin.Context) {
	err := nc.newsletter.Delete(c.Request.Context(), c.Param("email"))

	if errors.Is(err, services.ErrSubscriberNotFound) {
		c.JSON(404, gin.H{
			"status":  404,
			"message": "Subscriber not found",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to delete subscriber")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Subscriber deleted",
	})
}
