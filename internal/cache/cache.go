// Package cache provides a Redis-backed cache for search results. Listing
// sites change slowly and scraping them is expensive, so identical queries
// within the TTL are served from cache. Redis being down degrades to live
// searches, never to failures.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

const keyPrefix = "rentfalcon:search:"

// ResultCache caches assembled search results keyed by the query.
type ResultCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *logrus.Entry
}

// New creates a result cache from the application configuration. With
// caching disabled it returns a no-op instance.
func New(cfg *config.Config) *ResultCache {
	logger := utils.GetLogger().WithField("component", "cache")

	if !cfg.Cache.Enabled {
		return &ResultCache{enabled: false, logger: logger}
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		// Fallback to default configuration
		opts = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = cfg.Redis.Timeout
	opts.WriteTimeout = cfg.Redis.Timeout

	return &ResultCache{
		client:  redis.NewClient(opts),
		ttl:     cfg.Cache.TTL,
		enabled: true,
		logger:  logger,
	}
}

// Key derives the cache key for one query. The enabled-source set is part
// of the key so a configuration change never serves stale results.
func Key(location string, minPrice, maxPrice *float64, enabledSources []string) string {
	return keyPrefix + fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(location)),
		formatBound(minPrice),
		formatBound(maxPrice),
		strings.Join(enabledSources, ","),
	)
}

func formatBound(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *p)
}

// Get returns the cached result for the key, or false on a miss. Redis
// errors count as misses.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.SearchResult, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Cache read failed, falling through to live search")
		}
		return nil, false
	}

	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.WithError(err).Warn("Corrupt cache entry, ignoring")
		return nil, false
	}

	c.logger.WithField("key", key).Debug("Cache hit")
	return &result, true
}

// Set stores the result under the key for the configured TTL. Write
// failures are logged and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, result *models.SearchResult) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Warn("Could not serialize result for caching")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Cache write failed")
		return
	}
	c.logger.WithField("key", key).Debug("Cached search result")
}

// Ping tests the Redis connection.
func (c *ResultCache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}
