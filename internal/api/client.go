// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the DriveQuery backend.
//
// Every call takes a context, returns normalized result types, and fails with
// exactly one of three error kinds: *ValidationError, *NetworkError or
// *ServerError. Callers never see transport-specific error shapes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/driveq/internal/logging"
)

const (
	// DefaultBaseURL is the hosted backend.
	DefaultBaseURL = "https://drivequery-backend.onrender.com"

	// DefaultTimeout bounds non-streaming requests. Document ingestion on the
	// hosted backend can take a while, so this is generous.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize caps how much of any response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "driveq/0.3"
)

// Operation names, used in errors and logs.
const (
	opChat         = "send message"
	opStream       = "stream message"
	opUpload       = "upload document"
	opList         = "list documents"
	opDelete       = "delete document"
	opSearch       = "search documents"
	opStats        = "document stats"
	opClearSession = "clear session"
	opSessions     = "list sessions"
	opHealth       = "health check"
)

// sharedTransport pools connections across every Client in the process.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// Client talks to one backend. It is safe for concurrent use once built;
// the With* methods are meant for construction time only.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	userAgent    string
	maxBody      int64
	log          *slog.Logger
}

// NewClient creates a client for baseURL. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		// Streams are bounded by the caller's context only.
		streamClient: &http.Client{Transport: sharedTransport},
		userAgent:    userAgent,
		maxBody:      MaxResponseSize,
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// WithHTTPClient replaces the underlying client for both plain and streaming
// requests. Tests use it with httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		return c
	}
	c.httpClient = hc
	stream := *hc
	stream.Timeout = 0
	c.streamClient = &stream
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.log = l
	return c
}

// WithMaxResponseSize overrides the response size ceiling.
func (c *Client) WithMaxResponseSize(n int64) *Client {
	if n > 0 {
		c.maxBody = n
	}
	return c
}

// BaseURL returns the backend root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return logging.L()
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and returns the body of a 2xx response. Bodies are never
// logged; they may contain document text.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	log := c.logger()
	start := time.Now()
	log.Debug("api request", "op", op, "method", req.Method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("api request failed", "op", op, "error", err, "elapsed", time.Since(start))
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp.Body, c.maxBody)
	if err != nil {
		log.Warn("api response unreadable", "op", op, "status", resp.StatusCode, "error", err)
		if isBodyTooLarge(err) {
			return nil, &ServerError{Status: resp.StatusCode, Err: err}
		}
		return nil, &NetworkError{Op: op, Err: err}
	}

	log.Debug("api response", "op", op, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleErrorResponse(op, resp.StatusCode, body)
	}
	return body, nil
}

type bodyTooLargeError struct{ limit int64 }

func (e *bodyTooLargeError) Error() string {
	return fmt.Sprintf("response exceeds %d bytes", e.limit)
}

func isBodyTooLarge(err error) bool {
	_, ok := err.(*bodyTooLargeError)
	return ok
}

// readResponse reads at most limit bytes, failing if the body is larger.
func readResponse(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &bodyTooLargeError{limit: limit}
	}
	return data, nil
}

// Health reports whether the backend root answers with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return err
	}
	_, err = c.do(opHealth, req)
	return err
}
