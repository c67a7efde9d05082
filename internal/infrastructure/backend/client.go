// Package backend speaks the marketplace's HTTP/JSON API. It knows paths,
// bodies and status codes; it knows nothing about sessions or renewal.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobmarket/pkg/logger"
)

// maxResponseSize bounds every response body read.
const maxResponseSize int64 = 8 << 20

type Config struct {
	// BaseURL is the backend origin, e.g. "http://localhost:8000". The "/api"
	// prefix is appended by the client.
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Timeout bounds each request. Zero means 15 seconds.
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend: BaseURL %q must be absolute", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/") + "/api",
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

// Request describes one API call. Body is JSON-encoded on every attempt, so
// a Request can be re-issued after a token renewal.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

func (r Request) String() string {
	return r.Method + " " + r.Path
}

// Do performs the request and decodes a 2xx body into out (when out is
// non-nil). accessToken may be empty for unauthenticated endpoints.
//
// Transport failures and timeouts come back as *TransportError, non-2xx
// answers as *APIError.
func (c *Client) Do(ctx context.Context, req Request, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		requestURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("backend: encoding %s body: %w", req, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("backend: building %s: %w", req, err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}

	logger.Debug("backend %s -> %d in %s (request %s)", req, resp.StatusCode, time.Since(started).Round(time.Millisecond), requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend: decoding %s response: %w", req, err)
	}
	return nil
}
