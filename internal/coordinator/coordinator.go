// Package coordinator fans one rental search out to every enabled source
// adapter, bounds their concurrency and total latency, merges what came
// back, and removes cross-source duplicates. Partial adapter failure is the
// expected steady state: failures are returned as data in the result, never
// raised.
package coordinator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/internal/dedup"
	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

// ConfigError reports an invalid coordinator configuration or invalid run
// arguments. It is the only error Run and New return; everything that goes
// wrong during a run is reported through SearchResult.Errors instead.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Msg
}

// Coordinator runs the search pipeline: dispatch, aggregate, dedup, sort.
type Coordinator struct {
	cfg      *config.Config
	registry *sources.Registry
	enabled  []string
	dedup    *dedup.Deduplicator
	logger   *logrus.Entry
}

// New validates the configuration against the registry and builds a
// Coordinator. Every enabled source must have a registered adapter.
func New(cfg *config.Config, registry *sources.Registry) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}
	for _, name := range cfg.Search.EnabledSources {
		if _, ok := registry.Get(name); !ok {
			return nil, &ConfigError{Msg: fmt.Sprintf("unknown source %q enabled", name)}
		}
	}

	enabled := make([]string, len(cfg.Search.EnabledSources))
	copy(enabled, cfg.Search.EnabledSources)

	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		enabled:  enabled,
		dedup:    dedup.New(cfg.Search.SimilarityThreshold, cfg.Search.DedupEnabled),
		logger:   utils.GetLogger().WithField("component", "coordinator"),
	}, nil
}

// AvailableSources returns every adapter registered on this instance.
func (c *Coordinator) AvailableSources() []string {
	return c.registry.Names()
}

// EnabledSources returns the sources this coordinator will query, in their
// configured order.
func (c *Coordinator) EnabledSources() []string {
	out := make([]string, len(c.enabled))
	copy(out, c.enabled)
	return out
}

// Run executes one search across all enabled sources. The returned result
// is complete even when some or all sources failed; an error is returned
// only for invalid arguments.
func (c *Coordinator) Run(ctx context.Context, location string, minPrice, maxPrice *float64) (*models.SearchResult, error) {
	if location == "" {
		return nil, &ConfigError{Msg: "location must not be empty"}
	}
	if minPrice != nil && *minPrice < 0 {
		return nil, &ConfigError{Msg: "min price must not be negative"}
	}
	if maxPrice != nil && *maxPrice < 0 {
		return nil, &ConfigError{Msg: "max price must not be negative"}
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return nil, &ConfigError{Msg: "min price must not exceed max price"}
	}

	req := models.SearchRequest{
		Location: location,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}

	c.logger.WithFields(logrus.Fields{
		"location": location,
		"sources":  c.enabled,
	}).Info("Starting search")

	outcomes, started := c.dispatch(ctx, req)
	result := c.assemble(outcomes, started)

	c.logger.WithFields(logrus.Fields{
		"unique":  result.Stats.UniqueCount,
		"removed": result.Stats.DuplicatesRemoved,
		"failed":  result.Stats.FailedSources,
		"took_ms": result.Stats.ExecutionTimeMs,
	}).Info("Search complete")
	return result, nil
}
