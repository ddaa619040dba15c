package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты учетной записи без сессии
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/password-reset", h.requestPasswordReset)
		auth.POST("/password-reset/confirm", h.confirmPasswordReset)
	}

	// Маршруты заявителя, требуют токен сессии
	reporter := api.Group("", SessionAuthMiddleware(h.accountService, h.logger))
	{
		reporter.POST("/auth/logout", h.logout)
		reporter.GET("/me", h.getProfile)
		reporter.PUT("/me", h.updateProfile)
		reporter.PUT("/location", h.updateLocation)
		reporter.POST("/trigger/signal", h.triggerSignal)

		reporter.POST("/incidents", h.submitReport)
		reporter.GET("/incidents/mine", h.listMyIncidents)
		reporter.GET("/incidents/:id", h.getIncident)
		reporter.DELETE("/incidents/:id", h.deleteIncident)
	}

	// Маршруты участка, требуют API-ключ
	station := api.Group("/station", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		station.GET("/incidents", h.listIncidents)
		station.GET("/incidents/nearby", h.findNearby)
		station.GET("/stats", h.getStats)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
