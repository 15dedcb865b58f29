package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

func ptr(v float64) *float64 { return &v }

// stubAdapter is a scripted source for exercising the dispatcher.
type stubAdapter struct {
	name     string
	listings []models.Listing
	err      error
	delay    time.Duration
	ignores  bool // ignore context cancellation while delaying
	panicMsg string
	onSearch func()
}

func (s *stubAdapter) Identifier() string { return s.name }

func (s *stubAdapter) Search(ctx context.Context, req models.SearchRequest) ([]models.Listing, error) {
	if s.onSearch != nil {
		s.onSearch()
	}
	if s.delay > 0 {
		if s.ignores {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

func testConfig(enabled ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Search.EnabledSources = enabled
	cfg.Search.MaxParallel = 3
	cfg.Search.GlobalTimeout = 2 * time.Second
	cfg.Search.DedupEnabled = true
	cfg.Search.SimilarityThreshold = 0.85
	return cfg
}

func newTestCoordinator(t *testing.T, cfg *config.Config, adapters ...sources.Adapter) *Coordinator {
	t.Helper()

	registry := sources.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}

	coord, err := New(cfg, registry)
	require.NoError(t, err)
	return coord
}

func TestNewRejectsUnknownSource(t *testing.T) {
	registry := sources.NewRegistry()
	require.NoError(t, registry.Register(&stubAdapter{name: "kijiji"}))

	_, err := New(testConfig("kijiji", "nope"), registry)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "nope")
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	registry := sources.NewRegistry()
	require.NoError(t, registry.Register(&stubAdapter{name: "kijiji"}))

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no enabled sources", func(c *config.Config) { c.Search.EnabledSources = nil }},
		{"duplicate enabled source", func(c *config.Config) { c.Search.EnabledSources = []string{"kijiji", "kijiji"} }},
		{"zero parallelism", func(c *config.Config) { c.Search.MaxParallel = 0 }},
		{"zero timeout", func(c *config.Config) { c.Search.GlobalTimeout = 0 }},
		{"threshold above one", func(c *config.Config) { c.Search.SimilarityThreshold = 1.2 }},
		{"negative threshold", func(c *config.Config) { c.Search.SimilarityThreshold = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("kijiji")
			tt.mutate(cfg)

			_, err := New(cfg, registry)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRunRejectsInvalidArguments(t *testing.T) {
	coord := newTestCoordinator(t, testConfig("kijiji"), &stubAdapter{name: "kijiji"})

	tests := []struct {
		name               string
		location           string
		minPrice, maxPrice *float64
	}{
		{"empty location", "", nil, nil},
		{"negative min", "ottawa", ptr(-1), nil},
		{"negative max", "ottawa", nil, ptr(-1)},
		{"inverted bounds", "ottawa", ptr(2000), ptr(1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coord.Run(context.Background(), tt.location, tt.minPrice, tt.maxPrice)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	good := &stubAdapter{name: "good", listings: []models.Listing{
		{Source: "good", URL: "u1", Title: "2 Bed Apt", Price: ptr(1800)},
	}}
	bad := &stubAdapter{name: "bad", err: sources.NewNetworkError("bad", errors.New("connection refused"))}

	coord := newTestCoordinator(t, testConfig("good", "bad"), good, bad)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Listings, 1)
	assert.Equal(t, "good", result.Listings[0].Source)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors["bad"], "connection refused")
	assert.Equal(t, 1, result.Stats.SucceededSources)
	assert.Equal(t, 1, result.Stats.FailedSources)
	assert.Equal(t, map[string]int{"good": 1}, result.Stats.PerSourceCounts)
}

func TestRunTotalFailureIsNotFatal(t *testing.T) {
	a := &stubAdapter{name: "a", err: sources.NewTimeoutError("a", context.DeadlineExceeded)}
	b := &stubAdapter{name: "b", err: sources.NewParseError("b", "no listings block")}

	coord := newTestCoordinator(t, testConfig("a", "b"), a, b)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Listings)
	assert.Equal(t, 0, result.Stats.UniqueCount)
	assert.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors, "a")
	assert.Contains(t, result.Errors, "b")
}

func TestRunPriceMonotonicity(t *testing.T) {
	a := &stubAdapter{name: "a", listings: []models.Listing{
		{Source: "a", URL: "u1", Title: "Loft Alpha", Price: ptr(2200)},
		{Source: "a", URL: "u2", Title: "Suite Beta", Price: nil},
		{Source: "a", URL: "u3", Title: "Condo Gamma", Price: ptr(1500)},
	}}
	b := &stubAdapter{name: "b", listings: []models.Listing{
		{Source: "b", URL: "u4", Title: "Flat Delta", Price: ptr(1800)},
		{Source: "b", URL: "u5", Title: "Room Epsilon", Price: nil},
	}}

	coord := newTestCoordinator(t, testConfig("a", "b"), a, b)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Listings, 5)

	for i := 0; i < len(result.Listings)-1; i++ {
		cur, next := result.Listings[i].Price, result.Listings[i+1].Price
		if cur == nil {
			assert.Nil(t, next, "unpriced listings must sort last")
			continue
		}
		if next != nil {
			assert.LessOrEqual(t, *cur, *next)
		}
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	kijiji := &stubAdapter{name: "kijiji", listings: []models.Listing{
		{Source: "kijiji", URL: "u1", Title: "2 Bed Apt Downtown", Price: ptr(1800), Location: "Ottawa, ON"},
	}}
	rentals := &stubAdapter{name: "rentals", listings: []models.Listing{
		{Source: "rentals", URL: "u2", Title: "2 Bed Apt in Downtown", Price: ptr(1800), Location: "Ottawa, Ontario"},
	}}

	coord := newTestCoordinator(t, testConfig("kijiji", "rentals"), kijiji, rentals)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	assert.Len(t, result.Listings, 1)
	assert.Equal(t, 2, result.Stats.RawCount)
	assert.Equal(t, 1, result.Stats.UniqueCount)
	assert.Equal(t, 1, result.Stats.DuplicatesRemoved)
}

func TestRunDedupDisabled(t *testing.T) {
	kijiji := &stubAdapter{name: "kijiji", listings: []models.Listing{
		{Source: "kijiji", URL: "u1", Title: "2 Bed Apt Downtown", Price: ptr(1800), Location: "Ottawa, ON"},
	}}
	rentals := &stubAdapter{name: "rentals", listings: []models.Listing{
		{Source: "rentals", URL: "u2", Title: "2 Bed Apt in Downtown", Price: ptr(1800), Location: "Ottawa, Ontario"},
	}}

	cfg := testConfig("kijiji", "rentals")
	cfg.Search.DedupEnabled = false

	coord := newTestCoordinator(t, cfg, kijiji, rentals)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	assert.Len(t, result.Listings, 2)
	assert.Equal(t, 0, result.Stats.DuplicatesRemoved)
}

func TestRunGlobalDeadlineAbandonsPendingSources(t *testing.T) {
	fast := &stubAdapter{name: "fast", listings: []models.Listing{
		{Source: "fast", URL: "u1", Title: "Quick Flat", Price: ptr(1500)},
	}}
	// Sleeps through cancellation, like an adapter stuck in a render wait.
	slow := &stubAdapter{name: "slow", delay: 3 * time.Second, ignores: true}

	cfg := testConfig("fast", "slow")
	cfg.Search.GlobalTimeout = 150 * time.Millisecond

	coord := newTestCoordinator(t, cfg, fast, slow)
	started := time.Now()
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 2*time.Second, "run must not wait for the stuck adapter")
	require.Len(t, result.Listings, 1)
	assert.Equal(t, "fast", result.Listings[0].Source)
	assert.Contains(t, result.Errors["slow"], "deadline")
}

func TestRunAdapterTimeoutIsRecordedPerSource(t *testing.T) {
	cooperative := &stubAdapter{name: "coop", delay: 3 * time.Second}

	cfg := testConfig("coop")
	cfg.Search.GlobalTimeout = 150 * time.Millisecond

	coord := newTestCoordinator(t, cfg, cooperative)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Listings)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors, "coop")
}

func TestRunRecoversFromAdapterPanic(t *testing.T) {
	angry := &stubAdapter{name: "angry", panicMsg: "nil map write"}
	calm := &stubAdapter{name: "calm", listings: []models.Listing{
		{Source: "calm", URL: "u1", Title: "Quiet Flat", Price: ptr(1600)},
	}}

	coord := newTestCoordinator(t, testConfig("angry", "calm"), angry, calm)
	result, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Listings, 1)
	assert.Contains(t, result.Errors["angry"], "panic")
}

func TestRunBoundsConcurrency(t *testing.T) {
	var current, peak int32

	makeAdapter := func(name string) *stubAdapter {
		return &stubAdapter{
			name: name,
			onSearch: func() {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&current, -1)
			},
		}
	}

	cfg := testConfig("a", "b", "c", "d")
	cfg.Search.MaxParallel = 2

	coord := newTestCoordinator(t, cfg,
		makeAdapter("a"), makeAdapter("b"), makeAdapter("c"), makeAdapter("d"))

	_, err := coord.Run(context.Background(), "ottawa", nil, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestSourceListings(t *testing.T) {
	coord := newTestCoordinator(t, testConfig("b", "a"),
		&stubAdapter{name: "a"}, &stubAdapter{name: "b"}, &stubAdapter{name: "c"})

	assert.Equal(t, []string{"a", "b", "c"}, coord.AvailableSources())
	assert.Equal(t, []string{"b", "a"}, coord.EnabledSources())
}
