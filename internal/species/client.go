// Package species is the client for the species metadata service. Responses
// are cached, requests are rate limited, and transient failures are retried.
package species

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/models"
)

const maxRetries = 3

// Config configures the species client.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	CacheTTL    time.Duration
	RateLimitMS int
	Metrics     *metrics.Metrics
}

// DefaultConfig returns the defaults applied to zero config fields.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://perenual.com/api",
		Timeout:     10 * time.Second,
		CacheTTL:    24 * time.Hour,
		RateLimitMS: 250,
	}
}

// Client queries the species metadata service.
type Client struct {
	config      Config
	httpClient  *http.Client
	cache       *cache.Cache
	rateLimiter *time.Ticker
	mu          sync.Mutex
}

// NewClient creates a species client. An empty API key is accepted; every
// request then fails with apperr.ErrNotConfigured and Lookup falls back to
// the default interval.
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = def.CacheTTL
	}
	if config.RateLimitMS <= 0 {
		config.RateLimitMS = def.RateLimitMS
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		cache:       cache.New(config.CacheTTL, config.CacheTTL*2),
		rateLimiter: time.NewTicker(time.Duration(config.RateLimitMS) * time.Millisecond),
	}
	slog.Info("species client initialized",
		slog.String("base_url", config.BaseURL),
		slog.Duration("cache_ttl", config.CacheTTL),
		slog.Int("rate_limit_ms", config.RateLimitMS),
		slog.Bool("api_key_configured", c.Configured()))
	if !c.Configured() {
		slog.Warn("species api key missing; watering intervals fall back to the default")
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// Close stops the rate limiter.
func (c *Client) Close() {
	c.rateLimiter.Stop()
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.Flush()
}

// Search returns the catalog entries matching query, best match first.
func (c *Client) Search(ctx context.Context, query string) ([]models.SpeciesSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SpeciesSummary{}, nil
	}
	cacheKey := "search:" + strings.ToLower(query)
	if cached, found := c.cache.Get(cacheKey); found {
		if hits, ok := cached.([]models.SpeciesSummary); ok {
			c.config.Metrics.SpeciesCache(true)
			return hits, nil
		}
	}
	c.config.Metrics.SpeciesCache(false)

	q := url.Values{}
	q.Set("key", c.config.APIKey)
	q.Set("q", query)
	var resp struct {
		Data []models.SpeciesSummary `json:"data"`
	}
	if err := c.doRequestWithRetry(ctx, "search", c.config.BaseURL+"/species-list?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []models.SpeciesSummary{}
	}
	c.cache.Set(cacheKey, resp.Data, cache.DefaultExpiration)
	return resp.Data, nil
}

// Details returns the detail document of one species.
func (c *Client) Details(ctx context.Context, id models.SpeciesID) (*models.SpeciesDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("species: empty id: %w", apperr.ErrInvalidInput)
	}
	cacheKey := "details:" + string(id)
	if cached, found := c.cache.Get(cacheKey); found {
		if d, ok := cached.(*models.SpeciesDetail); ok {
			c.config.Metrics.SpeciesCache(true)
			return d, nil
		}
	}
	c.config.Metrics.SpeciesCache(false)

	q := url.Values{}
	q.Set("key", c.config.APIKey)
	target := c.config.BaseURL + "/species/details/" + url.PathEscape(string(id)) + "?" + q.Encode()
	var detail models.SpeciesDetail
	if err := c.doRequestWithRetry(ctx, "details", target, &detail); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, &detail, cache.DefaultExpiration)
	return &detail, nil
}

// doRequest performs one rate-limited GET and decodes a 2xx body into result.
func (c *Client) doRequest(ctx context.Context, op, target string, result any) error {
	if !c.Configured() {
		return fmt.Errorf("species: %s: %w", op, apperr.ErrNotConfigured)
	}

	c.mu.Lock()
	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		c.mu.Unlock()
		return ctx.Err()
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("species: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.config.Metrics.ObserveUpstream(metrics.ServiceSpecies, op, 0, time.Since(start))
		return fmt.Errorf("species: %s: %w: %w", op, apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.config.Metrics.ObserveUpstream(metrics.ServiceSpecies, op, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("species: %s: read body: %w: %w", op, apperr.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			slog.Error("species api authentication failed",
				slog.Int("status", resp.StatusCode),
				slog.String("message", "check species.api_key in the configuration"))
		}
		return &apperr.StatusError{Op: "species " + op, Status: resp.StatusCode, Message: preview(body)}
	}
	if err := json.Unmarshal(body, result); err != nil {
		slog.Error("failed to parse species response",
			slog.String("op", op),
			slog.Int("response_size", len(body)),
			slog.String("response_preview", preview(body)))
		return fmt.Errorf("species: %s: decode: %w", op, err)
	}
	return nil
}

// doRequestWithRetry retries transport failures, 429 and 5xx answers with a
// linear backoff.
func (c *Client) doRequestWithRetry(ctx context.Context, op, target string, result any) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := c.doRequest(ctx, op, target, result)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * 500 * time.Millisecond
			slog.Warn("species request failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.Int64("delay_ms", delay.Milliseconds()),
				slog.String("error", err.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, apperr.ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, apperr.ErrUnavailable)
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
