package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvnkmnk/rentFalcon/internal/cache"
	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/internal/coordinator"
	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

type stubAdapter struct {
	name     string
	listings []models.Listing
	err      error
}

func (s *stubAdapter) Identifier() string { return s.name }

func (s *stubAdapter) Search(context.Context, models.SearchRequest) ([]models.Listing, error) {
	return s.listings, s.err
}

func newTestStack(t *testing.T, adapters ...sources.Adapter) (*coordinator.Coordinator, *cache.ResultCache) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Search.MaxParallel = 2
	cfg.Search.GlobalTimeout = time.Second
	cfg.Search.DedupEnabled = true
	cfg.Search.SimilarityThreshold = 0.85
	for _, a := range adapters {
		cfg.Search.EnabledSources = append(cfg.Search.EnabledSources, a.Identifier())
	}

	registry := sources.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}

	coord, err := coordinator.New(cfg, registry)
	require.NoError(t, err)

	cacheCfg := &config.Config{}
	cacheCfg.Cache.Enabled = false
	return coord, cache.New(cacheCfg)
}

func price(v float64) *float64 { return &v }

func TestSearchHandler(t *testing.T) {
	adapter := &stubAdapter{name: "kijiji", listings: []models.Listing{
		{Source: "kijiji", URL: "u1", Title: "2 Bed Apt", Price: price(1800), ScrapedAt: time.Now()},
	}}
	coord, resultCache := newTestStack(t, adapter)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?location=ottawa&max_price=2500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, SearchHandler(coord, resultCache)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Listings, 1)
	assert.Equal(t, "u1", resp.Result.Listings[0].URL)
	assert.Equal(t, 1, resp.Result.Stats.UniqueCount)
}

func TestSearchHandlerRequiresLocation(t *testing.T) {
	coord, resultCache := newTestStack(t, &stubAdapter{name: "kijiji"})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, SearchHandler(coord, resultCache)(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Error)
}

func TestSearchHandlerReportsSourceErrors(t *testing.T) {
	good := &stubAdapter{name: "good", listings: []models.Listing{
		{Source: "good", URL: "u1", Title: "Flat", Price: price(1500), ScrapedAt: time.Now()},
	}}
	bad := &stubAdapter{name: "bad", err: sources.NewParseError("bad", "layout changed")}
	coord, resultCache := newTestStack(t, good, bad)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?location=ottawa", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, SearchHandler(coord, resultCache)(c))
	assert.Equal(t, http.StatusOK, rec.Code, "partial failure still returns results")

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Listings, 1)
	assert.Contains(t, resp.Result.Errors["bad"], "layout changed")
}

func TestSourcesHandler(t *testing.T) {
	coord, _ := newTestStack(t,
		&stubAdapter{name: "kijiji"}, &stubAdapter{name: "rentals_ca"})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, SourcesHandler(coord)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.SourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"kijiji", "rentals_ca"}, resp.Available)
	assert.Equal(t, []string{"kijiji", "rentals_ca"}, resp.Enabled)
}
