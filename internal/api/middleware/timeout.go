package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig caps how long a request may hold a handler. It is set
// above the coordinator's global deadline, so a search that trips it
// indicates the dispatcher itself stalled.
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      timeout,
		ErrorMessage: "search did not complete in time",
	})
} 