// Package api is a small JSON-over-HTTP client shared by the REST generator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"llm-signal-advisor/internal/logger"
)

// Client carries default headers and an http.Client with a timeout.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	useLogging bool
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...interface{}) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...interface{}) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogging enables request/response debug logging.
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// WithHTTPClient replaces the underlying client. Options applied before it,
// such as WithTimeout, are discarded.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, truncate(e.Body, 200))
}

// PostJSON encodes body as JSON, posts it and reads the whole answer.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logDebug(ctx, "HTTP Request", "method", http.MethodPost, "url", url, "bodySize", len(payload))

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logDebug(ctx, "HTTP Response",
		"url", url,
		"status", httpResp.StatusCode,
		"duration", time.Since(startTime),
		"bodySize", len(respBody))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logWarn(ctx, "HTTP error response", "url", url, "status", httpResp.StatusCode)
		return nil, &StatusError{Code: httpResp.StatusCode, Body: string(respBody)}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
