package controller

import (
	"errors"
	"net/http"

	"github.com/Mirvisek/RiseGen/internal/middleware"
	"github.com/Mirvisek/RiseGen/internal/model"
	"github.com/Mirvisek/RiseGen/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type AuthController struct {
	apiRouter   *gin.RouterGroup
	adminRouter *gin.RouterGroup
	auth        *services.AuthService
	sessions    *services.SessionService
}

func NewAuthController(apiRouter *gin.RouterGroup, adminRouter *gin.RouterGroup, auth *services.AuthService, sessions *services.SessionService) *AuthController {
	return &AuthController{
		apiRouter:   apiRouter,
		adminRouter: adminRouter,
		auth:        auth,
		sessions:    sessions,
	}
}

func (ac *AuthController) SetupRoutes() {
	authGroup := ac.apiRouter.Group("/auth")
	authGroup.POST("/login", ac.login)
	authGroup.POST("/logout", ac.logout)
	authGroup.GET("/session", ac.session)

	ac.adminRouter.POST("/change-password", ac.changePassword)
}

func (ac *AuthController) login(c *gin.Context) {
	var credentials Credentials

	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Invalid request body",
		})
		return
	}

	user, err := ac.auth.Authenticate(c.Request.Context(), credentials.Email, credentials.Password)

	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Warn().Str("email", credentials.Email).Msg("failed login attempt")
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Invalid email or password",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to authenticate user")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	if !ac.issueCookie(c, user) {
		return
	}

	c.JSON(200, gin.H{
		"status":             200,
		"email":              user.Email,
		"roles":              user.RoleList(),
		"mustChangePassword": user.MustChangePassword,
	})
}

func (ac *AuthController) logout(c *gin.Context) {
	http.SetCookie(c.Writer, ac.sessions.ExpiredCookie())
	c.JSON(200, gin.H{
		"status":  200,
		"message": "Logged out",
	})
}

func (ac *AuthController) session(c *gin.Context) {
	session := middleware.Session(c, ac.sessions)

	if !session.Authenticated {
		c.JSON(401, middleware.UnauthorizedBody)
		return
	}

	c.JSON(200, gin.H{
		"status":             200,
		"email":              session.Email,
		"roles":              session.Roles,
		"mustChangePassword": session.MustChangePassword,
	})
}

func (ac *AuthController) changePassword(c *gin.Context) {
	session := middleware.Session(c, ac.sessions)

	if !session.Authenticated {
		c.JSON(401, middleware.UnauthorizedBody)
		return
	}

	var change PasswordChange

	if err := c.ShouldBindJSON(&change); err != nil {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Invalid request body",
		})
		return
	}

	user, err := ac.auth.ChangePassword(c.Request.Context(), session.UserID, change.CurrentPassword, change.NewPassword)

	switch {
	case errors.Is(err, services.ErrWeakPassword):
		c.JSON(400, gin.H{
			"status":  400,
			"message": err.Error(),
		})
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Current password is incorrect",
		})
		return
	case err != nil:
		log.Error().Err(err).Msg("failed to change password")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Database error",
		})
		return
	}

	if !ac.issueCookie(c, user) {
		return
	}

	log.Info().Str("email", user.Email).Msg("password changed")

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Password changed",
	})
}

func (ac *AuthController) issueCookie(c *gin.Context, user model.User) bool {
	token, err := ac.sessions.Issue(user)

	if err != nil {
		log.Error().Err(err).Msg("failed to issue session")
		c.JSON(503, gin.H{
			"status":  503,
			"message": "Sessions are not configured",
		})
		return false
	}

	http.SetCookie(c.Writer, ac.sessions.Cookie(token))
	return true
}
