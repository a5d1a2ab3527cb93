// Package statsapi provides the HTTP client for the third-party sports
// statistics API, with per-call proxy rotation, browser-shaped request
// headers, and decoding of the tabular resultSets payload.
package statsapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsight/nba-stats-ingest/pkg/proxy"
)

// Prometheus metrics for stats API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_api_requests_total",
		Help: "Total stats API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_api_request_duration_seconds",
		Help:    "Stats API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_api_errors_total",
		Help: "Total stats API errors by class",
	}, []string{"class"})
)

// maxBodySize caps response reads; stat payloads are a few MB at most.
const maxBodySize = 16 << 20

// Config holds the stats API client configuration.
type Config struct {
	// BaseURL of the stats API, without a trailing slash.
	BaseURL string

	// DirectTimeout applies when calling without a proxy.
	DirectTimeout time.Duration

	// ProxyTimeout applies when calling through a proxy; proxied
	// connections are slow enough to need the headroom.
	ProxyTimeout time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://stats.nba.com/stats",
		DirectTimeout: 30 * time.Second,
		ProxyTimeout:  120 * time.Second,
	}
}

// Client calls the stats API. When a proxy pool is attached, every call
// selects a proxy and reports its outcome back to the pool.
type Client struct {
	cfg     Config
	proxies *proxy.Manager
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[string]*http.Client
}

// New creates a stats API client. proxies may be nil, in which case all
// calls go out directly.
func New(cfg Config, proxies *proxy.Manager) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = 30 * time.Second
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = 120 * time.Second
	}

	return &Client{
		cfg:     cfg,
		proxies: proxies,
		logger:  log.With().Str("component", "stats-api").Logger(),
		clients: make(map[string]*http.Client),
	}, nil
}

// Get fetches one endpoint and decodes its resultSets payload.
// Single attempt; retry policy lives in the fetch package.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	proxyEndpoint := ""
	if c.proxies != nil {
		proxyEndpoint = c.proxies.GetHealthyProxy()
	}

	resp, err := c.do(ctx, endpoint, params, proxyEndpoint)
	if err != nil {
		if errors.Is(err, errRequestSetup) {
			// Never reached the wire; the proxy's record stays untouched.
			apiErrorsTotal.WithLabelValues(string(ErrorClassPermanent)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "setup_error").Inc()
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Stats API request setup failed")
			return nil, fmt.Errorf("stats API %s: %w", endpoint, err)
		}
		c.markProxy(proxyEndpoint, false)
		apiErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Stats API request failed")
		return nil, fmt.Errorf("stats API %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(class)).Inc()

		// Throttling and server errors burn the proxy; a plain client
		// error means the proxy relayed fine.
		c.markProxy(proxyEndpoint, class != ErrorClassTransient)

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Stats API error response")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.markProxy(proxyEndpoint, false)
		apiErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		return nil, fmt.Errorf("read stats API response: %w", err)
	}

	decoded, err := Decode(body)
	if err != nil {
		// The transport worked; the payload is the problem.
		c.markProxy(proxyEndpoint, true)
		apiErrorsTotal.WithLabelValues(string(ErrorClassPermanent)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassPermanent,
			Message:    "unexpected payload shape",
			Err:        err,
		}
	}

	c.markProxy(proxyEndpoint, true)
	return decoded, nil
}

// do executes the raw HTTP request through the given proxy ("" = direct).
func (c *Client) do(ctx context.Context, endpoint string, params url.Values, proxyEndpoint string) (*http.Response, error) {
	u := c.cfg.BaseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", errRequestSetup, err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}

	httpClient, err := c.httpClient(proxyEndpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Bool("proxied", proxyEndpoint != "").
		Msg("Executing stats API request")

	return httpClient.Do(req)
}

// httpClient returns the cached client for a proxy endpoint, building
// one on first use. The empty key is the direct client.
func (c *Client) httpClient(proxyEndpoint string) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[proxyEndpoint]; ok {
		return client, nil
	}

	timeout := c.cfg.DirectTimeout
	transport := &http.Transport{}
	if proxyEndpoint != "" {
		proxyURL, err := url.Parse(proxyEndpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid proxy endpoint: %w", errRequestSetup, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		timeout = c.cfg.ProxyTimeout
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	c.clients[proxyEndpoint] = client
	return client, nil
}

// markProxy reports a call outcome back to the pool.
func (c *Client) markProxy(proxyEndpoint string, success bool) {
	if c.proxies == nil || proxyEndpoint == "" {
		return
	}
	if success {
		c.proxies.MarkSuccess(proxyEndpoint)
	} else {
		c.proxies.MarkFailed(proxyEndpoint)
	}
}

// defaultHeaders mimics a browser session; the API rejects bare clients.
func defaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Referer":         "https://www.nba.com/",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Origin":          "https://www.nba.com",
		"Connection":      "keep-alive",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-site",
		"DNT":             "1",
	}
}
