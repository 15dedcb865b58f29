package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newServer(origins []string) *echo.Echo {
	e := echo.New()
	e.Use(CORSConfig(origins))
	e.Use(TimeoutConfig(time.Second))
	e.GET("/api/v1/search", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	e := newServer([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	e := newServer([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORSDefaultsToWildcard(t *testing.T) {
	e := newServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(echo.HeaderOrigin, "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCORSPreflight(t *testing.T) {
	e := newServer([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodGet)
}
