// Package remote is a small JSON-over-HTTP client for remote origins.
//
// Every request gets its own timeout through the context, bodies are capped
// at 1MB, and any transport, status or decoding failure is returned wrapped
// in core.ErrRemote.
package remote

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
	"time"

	"github.com/aretw0/loft/pkg/core"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// connection pooling limits
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// Recorder receives the outcome of every request.
type Recorder interface {
	ObserveRemote(origin, endpoint string, status int, success bool, duration time.Duration)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Endpoint, e.Code)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client fetches JSON documents from one origin.
type Client struct {
	baseURL    string
	origin     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	recorder   Recorder
}

// NewClient creates a client for the origin at baseURL
// (e.g. "https://www.themealdb.com/api/json/v1/1").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// no default timeout - per-request timeouts come from the context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.origin = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the origin the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// GetJSON issues GET baseURL/endpoint?params and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status := 0
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveRemote(c.origin, endpoint, status, err == nil, time.Since(start))
		}
		if err != nil {
			c.logger.Debug("remote request failed", "endpoint", endpoint, "status", status, "error", err)
		}
	}()

	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", core.ErrRemote, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL may carry credentials in its query, report the endpoint only
		var uErr *url.Error
		if errors.As(err, &uErr) {
			err = uErr.Err
		}
		return fmt.Errorf("%w: GET %s: %w", core.ErrRemote, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", core.ErrRemote, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", core.ErrRemote, &StatusError{Endpoint: endpoint, Code: resp.StatusCode})
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", core.ErrRemote, endpoint, err)
	}
	return nil
}

// Close closes idle connections. The client remains usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
