package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yigit/campusreg/internal/app/controllers"
	"github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/middleware"
)

// Handlers groups everything SetupRouter wires
type Handlers struct {
	AuthController   *controllers.AuthController
	ClaimController  *controllers.ClaimController
	DraftController  *controllers.DraftController
	HealthController *controllers.HealthController
	SessionService   services.SessionService
	SessionCookie    middleware.SessionCookieConfig
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, h Handlers) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(controllers.MethodNotAllowed)

	router.GET("/health", h.HealthController.Live)
	router.GET("/health/ready", h.HealthController.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	withSession := router.Group("")
	withSession.Use(middleware.SessionCookie(h.SessionCookie))

	// Legacy form target
	withSession.POST("/finalize_role.php",
		middleware.RequireCSRF(h.SessionService, controllers.RespondClaimError),
		h.ClaimController.FinalizeRole,
	)

	v1 := withSession.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.GET("/csrf", h.AuthController.CSRFToken)
		auth.GET("/google/login", h.AuthController.GoogleLogin)
		auth.GET("/google/callback", h.AuthController.GoogleCallback)
		auth.GET("/session", middleware.RequireSession(h.SessionService), h.AuthController.CurrentSession)

		auth.POST("/finalize-role",
			middleware.RequireCSRF(h.SessionService, controllers.RespondClaimError),
			h.ClaimController.FinalizeRole,
		)
		auth.POST("/logout",
			middleware.RequireCSRF(h.SessionService, middleware.HandleAPIError),
			h.AuthController.Logout,
		)
	}

	registration := v1.Group("/registration")
	registration.Use(middleware.RequireSession(h.SessionService))
	registration.Use(middleware.RequireCSRF(h.SessionService, middleware.HandleAPIError))
	{
		registration.GET("/draft", h.DraftController.GetDraft)
		registration.PUT("/draft", h.DraftController.SaveDraft)
	}
}
