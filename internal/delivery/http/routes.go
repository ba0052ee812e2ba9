package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pricealert/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/options", handler.Options)
		v1.GET("/candidates", handler.SearchCandidates)

		tracking := v1.Group("/tracking")
		{
			tracking.GET("", handler.GetStatus)
			tracking.POST("", handler.StartTracking)
			tracking.DELETE("", handler.DeleteTracking)
			tracking.POST("/stop", handler.StopTracking)
			tracking.POST("/resume", handler.ResumeTracking)
			tracking.POST("/confirm", handler.ConfirmStatus)
		}

		v1.POST("/email/test", handler.SendTestEmail)
	}

	return router
}
