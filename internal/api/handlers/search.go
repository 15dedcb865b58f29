package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/pvnkmnk/rentFalcon/internal/cache"
	"github.com/pvnkmnk/rentFalcon/internal/coordinator"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

var validate = validator.New()

// SearchHandler runs an aggregated listing search across the enabled
// sources, serving repeats of recent queries from the result cache.
func SearchHandler(coord *coordinator.Coordinator, resultCache *cache.ResultCache) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GenerateRequestID()
		logger := utils.LogWithRequestID(requestID)

		var req models.SearchRequest
		if err := c.Bind(&req); err != nil {
			logger.WithError(err).Error("Failed to bind search request")
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_request",
				Message:   "Invalid request format",
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		if err := validate.Struct(&req); err != nil {
			logger.WithError(err).Error("Search request validation failed")
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "validation_failed",
				Message:   err.Error(),
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		logger.WithField("location", req.Location).Info("Search request received")
		ctx := c.Request().Context()

		key := cache.Key(req.Location, req.MinPrice, req.MaxPrice, coord.EnabledSources())
		if result, ok := resultCache.Get(ctx, key); ok {
			logger.Info("Serving search result from cache")
			return c.JSON(http.StatusOK, models.SearchResponse{
				Success:   true,
				Result:    result,
				RequestID: requestID,
			})
		}

		result, err := coord.Run(ctx, req.Location, req.MinPrice, req.MaxPrice)
		if err != nil {
			logger.WithError(err).Error("Search rejected")
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:     "invalid_search",
				Message:   err.Error(),
				RequestID: requestID,
				Timestamp: time.Now(),
			})
		}

		resultCache.Set(ctx, key, result)

		return c.JSON(http.StatusOK, models.SearchResponse{
			Success:   true,
			Result:    result,
			RequestID: requestID,
		})
	}
}

// SourcesHandler reports which adapters exist and which are enabled.
func SourcesHandler(coord *coordinator.Coordinator) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.SourcesResponse{
			Available: coord.AvailableSources(),
			Enabled:   coord.EnabledSources(),
		})
	}
}
