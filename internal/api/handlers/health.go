package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pvnkmnk/rentFalcon/internal/cache"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Timestamp: time.Now(),
	})
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
	})
}

// ReadinessHandler reports ready once the cache backend is reachable; a
// down cache degrades searches but does not fail readiness.
func ReadinessHandler(resultCache *cache.ResultCache) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "ready"
		if err := resultCache.Ping(c.Request().Context()); err != nil {
			status = "ready (cache degraded)"
		}
		return c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
		})
	}
}
