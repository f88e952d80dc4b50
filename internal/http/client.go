// Package http provides the probe client used against the target API.
//
// Every request goes through the shared rate limiter. Transport failures
// never surface as Go errors from Do; they are absorbed into the Response
// with status 0 so a single bad probe cannot abort a pass.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/APIProbe/internal/errors"
	"github.com/PentesterFlow/APIProbe/internal/logger"
	"github.com/PentesterFlow/APIProbe/internal/metrics"
	"github.com/PentesterFlow/APIProbe/internal/ratelimit"
)

// Config holds configuration for the probe client.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	UserAgent           string
	Headers             map[string]string
	SkipTLSVerify       bool
	MaxBodySize         int64
}

// DefaultConfig returns defaults suitable for probing one API host.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		UserAgent:           "APIProbe/1.0",
		SkipTLSVerify:       true,
		MaxBodySize:         5 * 1024 * 1024,
	}
}

// Client sends probes to a single base URL.
type Client struct {
	client  *http.Client
	baseURL string
	maxBody int64

	mu        sync.RWMutex
	userAgent string
	headers   map[string]string
	limiter   *ratelimit.Limiter
	metrics   *metrics.Collector
	logger    *logger.Logger
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.NewInputError("invalid base URL %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewInputError("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return errors.NewInputError("invalid base URL %q: missing host", raw)
	}
	return nil
}

// NewClient creates a probe client for config.BaseURL.
func NewClient(config Config) (*Client, error) {
	if err := ValidateBaseURL(config.BaseURL); err != nil {
		return nil, err
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultConfig().MaxBodySize
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		baseURL:   strings.TrimRight(strings.TrimSpace(config.BaseURL), "/"),
		maxBody:   config.MaxBodySize,
		userAgent: config.UserAgent,
		headers:   config.Headers,
		limiter:   ratelimit.NewFromDelay(0),
		metrics:   metrics.New(),
		logger:    logger.Nop(),
	}, nil
}

// SetLimiter shares a rate limiter with the client.
func (c *Client) SetLimiter(l *ratelimit.Limiter) {
	c.mu.Lock()
	c.limiter = l
	c.mu.Unlock()
}

// SetMetrics sets the collector probes are recorded to.
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

// SetLogger sets the logger probe events are written to.
func (c *Client) SetLogger(l *logger.Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

// SetTransport replaces the underlying round tripper, keeping the timeout.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.client.Transport = rt
}

// BaseURL returns the normalized base URL (no trailing slash).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL builds the absolute URL for req.
func (c *Client) URL(req Request) string {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// Do sends one probe. It always returns a non-nil Response.
func (c *Client) Do(ctx context.Context, req Request) *Response {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target := c.URL(req)
	resp := &Response{Request: req, URL: target}

	c.mu.RLock()
	limiter, collector, log := c.limiter, c.metrics, c.logger
	userAgent, headers := c.userAgent, c.headers
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		resp.Err = errors.Categorize(err, target)
		return resp
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, nil)
	if err != nil {
		resp.Err = errors.NewProbeError(errors.Unknown, target, "request_creation", "failed to create request", err)
		collector.RecordError(errors.Unknown.String())
		return resp
	}
	if userAgent != "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	httpReq.Header.Set("Accept", "application/json, */*;q=0.8")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	resp.Duration = time.Since(start)
	if err != nil {
		probeErr := errors.Categorize(err, target)
		resp.Err = probeErr
		collector.RecordProbe(0, resp.Duration, 0)
		collector.RecordError(probeErr.Type.String())
		log.ProbeEvent(req.Method, target, 0, resp.Duration)
		return resp
	}
	defer httpResp.Body.Close()

	resp.StatusCode = httpResp.StatusCode
	resp.ContentType = httpResp.Header.Get("Content-Type")

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody))
	resp.Body = body
	resp.Duration = time.Since(start)
	if err != nil {
		resp.Err = errors.NewProbeError(errors.Parse, target, "read_body", "failed to read body", err)
		collector.RecordError(errors.Parse.String())
	}

	collector.RecordProbe(resp.StatusCode, resp.Duration, int64(len(body)))
	log.ProbeEvent(req.Method, target, resp.StatusCode, resp.Duration)
	return resp
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// String implements fmt.Stringer.
func (c *Client) String() string {
	return fmt.Sprintf("probe client for %s", c.baseURL)
}
