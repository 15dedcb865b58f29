package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/pvnkmnk/rentFalcon/internal/api/handlers"
	"github.com/pvnkmnk/rentFalcon/internal/api/middleware"
	"github.com/pvnkmnk/rentFalcon/internal/cache"
	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/internal/coordinator"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, coord *coordinator.Coordinator, resultCache *cache.ResultCache) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig(cfg.Server.CORSOrigins))
	// Searches fan out to slow scraping targets; the handler timeout must
	// outlive the coordinator's global deadline.
	e.Use(middleware.TimeoutConfig(cfg.Search.GlobalTimeout + 10*time.Second))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(resultCache))
		health.GET("/live", handlers.LivenessHandler)
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		v1.GET("/search", handlers.SearchHandler(coord, resultCache))
		v1.GET("/sources", handlers.SourcesHandler(coord))
	}
}
