package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transport wraps resty.Client with timeout handling and request logging.
// Retries are intentionally disabled: every call in this client is either
// user-triggered (re-invokable) or fire-and-forget, and the backend is
// never hammered on its behalf.
type Transport struct {
	resty   *resty.Client
	timeout time.Duration
	debug   bool
	logger  *slog.Logger
}

// TransportConfig holds configuration for the HTTP transport
type TransportConfig struct {
	Timeout   time.Duration
	UserAgent string
	Debug     bool
	Logger    *slog.Logger
}

// DefaultTransportConfig returns sensible defaults for the HTTP transport
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:   30 * time.Second,
		UserAgent: "anistream/1.0",
	}
}

// NewTransport creates a new HTTP transport with the given configuration
func NewTransport(config TransportConfig) *Transport {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "anistream/1.0"
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	transport := &Transport{
		resty:   restyClient,
		timeout: config.Timeout,
		debug:   config.Debug,
		logger:  config.Logger,
	}

	// Enable debug logging if requested
	if config.Debug && config.Logger != nil {
		restyClient.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			transport.logRequest(r)
			return nil
		})
		restyClient.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
			transport.logResponse(r)
			return nil
		})
	}

	return transport
}

// Get performs a GET request with context support. HTTP error statuses are
// not turned into errors here; the caller maps them onto the client's error
// taxonomy.
func (t *Transport) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	req := t.resty.R().SetContext(ctx)

	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", url, err)
	}

	return resp, nil
}

// Post performs a POST request with context support
func (t *Transport) Post(ctx context.Context, url string, body interface{}, headers map[string]string) (*resty.Response, error) {
	req := t.resty.R().
		SetContext(ctx).
		SetBody(body)

	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Post(url)
	if err != nil {
		return nil, fmt.Errorf("POST request failed for %s: %w", url, err)
	}

	return resp, nil
}

// Put performs a PUT request with context support
func (t *Transport) Put(ctx context.Context, url string, body interface{}, headers map[string]string) (*resty.Response, error) {
	req := t.resty.R().
		SetContext(ctx).
		SetBody(body)

	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Put(url)
	if err != nil {
		return nil, fmt.Errorf("PUT request failed for %s: %w", url, err)
	}

	return resp, nil
}

// Delete performs a DELETE request with context support
func (t *Transport) Delete(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	req := t.resty.R().SetContext(ctx)

	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Delete(url)
	if err != nil {
		return nil, fmt.Errorf("DELETE request failed for %s: %w", url, err)
	}

	return resp, nil
}

// SetHeader sets a default header for all requests
func (t *Transport) SetHeader(key, value string) {
	t.resty.SetHeader(key, value)
}

// GetTimeout returns the configured timeout
func (t *Transport) GetTimeout() time.Duration {
	return t.timeout
}

// logRequest logs HTTP request details
func (t *Transport) logRequest(r *resty.Request) {
	if t.logger == nil {
		return
	}

	t.logger.Debug("HTTP Request",
		"method", r.Method,
		"url", r.URL,
	)

	if r.Body != nil {
		t.logger.Debug("Request Body",
			"body", fmt.Sprintf("%v", r.Body),
		)
	}
}

// logResponse logs HTTP response details
func (t *Transport) logResponse(r *resty.Response) {
	if t.logger == nil {
		return
	}

	t.logger.Debug("HTTP Response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"time", r.Time(),
	)

	bodyStr := r.String()
	if len(bodyStr) > 1000 {
		bodyStr = bodyStr[:1000] + "... (truncated)"
	}
	t.logger.Debug("Response Body",
		"body", bodyStr,
	)
}
