// Package fetch provides the HTTP layer shared by the source adapters:
// a client with per-source rate limiting, bounded retries, and optional
// raw-response dumps for troubleshooting.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	Timeout    time.Duration // per-request timeout (default 30s)
	Delay      time.Duration // minimum interval between outbound requests
	MaxRetries int           // retries on retryable statuses and transport errors
	UserAgent  string
	Debug      bool   // persist raw response bodies
	DebugDir   string // where debug dumps go (default "debug_output")
}

// Client is a rate-limited HTTP client bound to one source.
type Client struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	debug      bool
	debugDir   string
	logger     *logrus.Entry
}

// NewClient creates a fetch client for the given source.
func NewClient(source string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.DebugDir == "" {
		opts.DebugDir = "debug_output"
	}

	var limiter *rate.Limiter
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	return &Client{
		source:     source,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		maxRetries: opts.MaxRetries,
		userAgent:  opts.UserAgent,
		debug:      opts.Debug,
		debugDir:   opts.DebugDir,
		logger:     utils.GetLogger().WithField("source", source),
	}
}

// Get fetches the URL, honoring the rate limit and retrying transient
// failures. Errors come back as typed *sources.Error values.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"url":     url,
			}).Debug("Retrying request")

			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, sources.Classify(c.source, ctx.Err())
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, sources.Classify(c.source, err)
			}
		}

		body, retryable, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, sources.Classify(c.source, lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := sources.NewNetworkError(c.source,
			fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url))
		return nil, isRetryableStatus(resp.StatusCode), err
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if c.debug {
		c.saveDebugBody(body)
	}
	return body, false, nil
}

// isRetryableStatus mirrors the statuses worth retrying on listing sites:
// throttling and transient upstream failures.
func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) saveDebugBody(body []byte) {
	if err := os.MkdirAll(c.debugDir, 0o755); err != nil {
		c.logger.WithError(err).Warn("Failed to create debug directory")
		return
	}

	name := fmt.Sprintf("%s_%s.html", c.source, time.Now().Format("20060102_150405"))
	path := filepath.Join(c.debugDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		c.logger.WithError(err).Warn("Failed to save debug response")
		return
	}
	c.logger.WithField("path", path).Debug("Saved debug response")
}
