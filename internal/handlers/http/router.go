package http

import (
	"net/http"

	"onebarn/internal/core/ports"
	"onebarn/internal/core/services"
	"onebarn/internal/infrastructure/middleware"
	"onebarn/internal/infrastructure/monitoring"
	"onebarn/pkg/config"
	"onebarn/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps groups everything the HTTP surface is built from.
type RouterDeps struct {
	Config        *config.Config
	Auth          services.AuthService
	Bridges       ports.BridgeProvider
	Events        *EventsHandler
	Health        *monitoring.HealthChecker
	Metrics       http.Handler
	ContextLogger *logger.ContextLogger
	Recorder      middleware.HTTPMetricsRecorder
	Logger        *zap.SugaredLogger
}

// NewRouter wires middleware and handlers into a gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.RequestLogger(deps.ContextLogger, deps.Recorder))
	if deps.Config.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.ErrorHandlerMiddleware(deps.Logger))

	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": monitoring.StatusHealthy})
	})
	if deps.Health != nil {
		router.GET("/ready", func(c *gin.Context) {
			status := deps.Health.CheckAll(c.Request.Context())
			code := http.StatusOK
			if status.Status == monitoring.StatusUnhealthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, status)
		})
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	public := router.Group("/api/v1")
	authenticated := router.Group("/api/v1", middleware.AuthMiddleware(deps.Auth))

	// The events socket lives outside the rate limiter so a long-lived
	// connection does not hold a concurrency slot.
	if deps.Events != nil {
		deps.Events.SetupRoutes(authenticated)
	}

	limited := authenticated.Group("", middleware.NewHTTPRateLimitMiddleware(deps.Config))
	NewAuthHandler(deps.Auth, deps.Config.Auth.ServiceKey, deps.Config.Auth.AccessTokenTTL).SetupRoutes(public, limited)
	NewCameraHandler(deps.Bridges, deps.Auth).SetupRoutes(limited)

	return router
}
