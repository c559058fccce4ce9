// Package client provides the INSPIRE search HTTP client with bounded
// retries, an optional Redis response cache, and error classification.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/inspire-names/pkg/cache"
	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for search requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspire_requests_total",
		Help: "Total INSPIRE search requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspire_request_duration_seconds",
		Help:    "INSPIRE search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspire_errors_total",
		Help: "Total INSPIRE request errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the public INSPIRE instance.
	DefaultBaseURL = "https://inspirehep.net"

	// SearchPath is the legacy search endpoint serving MARCXML.
	SearchPath = "/search"

	// maxErrorBody bounds how much of an error response is kept in messages.
	maxErrorBody = 512

	componentName = "inspire-client"
)

// Search parameters selecting HepNames records that carry both a BAI and an
// INSPIRE identifier, as MARCXML restricted to tag 035.
const (
	CollectionHepNames = "HepNames"
	PatternBAIAndID    = "035__9:BAI 035__:INSPIRE"
	FormatMARCXML      = "xm"
	OutputTag035       = "035"
)

// Client fetches MARCXML search pages from INSPIRE.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the INSPIRE instance, without trailing slash
	BaseURL string

	// User-Agent header identifying the harvester
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Redis enables the response cache when set
	Redis *redis.Client

	// CacheTTL applies to cached pages without an Expires header
	CacheTTL time.Duration

	// Retry policy for a single page
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		CacheTTL:  cache.DefaultTTL,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new INSPIRE client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// SearchParams builds the query for one page of HepNames identity records.
// offset is 1-based.
func SearchParams(pageSize, offset int) url.Values {
	return url.Values{
		"cc":   []string{CollectionHepNames},
		"p":    []string{PatternBAIAndID},
		"of":   []string{FormatMARCXML},
		"ot":   []string{OutputTag035},
		"rg":   []string{strconv.Itoa(pageSize)},
		"jrec": []string{strconv.Itoa(offset)},
	}
}

// FetchPage returns the raw MARCXML of the page starting at offset.
func (c *Client) FetchPage(ctx context.Context, pageSize, offset int) ([]byte, error) {
	return c.Search(ctx, SearchParams(pageSize, offset))
}

// Search performs a GET on the search endpoint and returns the body.
// Transient failures are retried on the same query; a cached response
// short-circuits the request.
func (c *Client) Search(ctx context.Context, params url.Values) ([]byte, error) {
	cacheKey := cache.CacheKey{Endpoint: SearchPath, QueryParams: params}
	logger := logging.FromContext(ctx, componentName)

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			logger.Debug().Str("key", cacheKey.String()).Msg("Serving page from cache")
			requestsTotal.WithLabelValues("cached").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Str("key", cacheKey.String()).Msg("Cache get error")
		}
	}

	target := c.config.BaseURL + SearchPath + "?" + params.Encode()

	var body []byte
	var resp *http.Response

	err := retryWithBackoff(ctx, c.config.Retry, logger, func() error {
		var reqErr error
		body, resp, reqErr = c.do(ctx, logger, target)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// do executes one attempt and reads the full body.
// Failures are returned as *InspireError so the retry loop can classify them.
func (c *Client) do(ctx context.Context, logger zerolog.Logger, target string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, &InspireError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/xml")

	logger.Debug().Str("url", target).Msg("Executing INSPIRE request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warn().Err(err).Str("url", target).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		if ctx.Err() != nil {
			// not worth retrying once the caller gave up
			return nil, nil, ctx.Err()
		}
		return nil, nil, &InspireError{ErrorClass: ErrorClassNetwork, Message: "transport", Err: err}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)

	if class := classifyStatus(resp.StatusCode); class != "" {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(status).Inc()

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("INSPIRE request error")

		return nil, nil, &InspireError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    strings.TrimSpace(resp.Status + " " + string(snippet)),
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("read_error").Inc()
		return nil, nil, &InspireError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(status).Inc()
	return body, resp, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
