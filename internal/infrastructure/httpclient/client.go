// Package httpclient executes single GET and POST requests against the
// dataset service. It performs no retries; every failure is reported as a
// *TransportError carrying the method, path and cause.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// maxBodySize is the largest response body accepted; larger ones fail.
const maxBodySize = 10 << 20

// Config configures the adapter.
type Config struct {
	// BaseURL every request path is resolved against.
	BaseURL string
	// Timeout for a single request.
	// Default: 30s
	Timeout time.Duration
	// UserAgent sent with every request.
	UserAgent string
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client is an HTTP adapter bound to a base URL. It owns its *http.Client
// and pooled transport; Close releases idle connections.
type Client struct {
	httpClient *http.Client
	transport  http.RoundTripper
	baseURL    *url.URL
	userAgent  string
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	// Paths are relative segments; without a trailing slash the last base
	// segment would be replaced during resolution.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		baseURL:   base,
		userAgent: cfg.UserAgent,
	}, nil
}

// Get performs a GET of path and returns the raw body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// Post performs a POST of body to path and returns the raw response body.
func (c *Client) Post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body, contentType)
}

// Close releases idle pooled connections. The client must not be used
// afterwards.
func (c *Client) Close() error {
	type idleCloser interface{ CloseIdleConnections() }
	if ic, ok := c.transport.(idleCloser); ok {
		ic.CloseIdleConnections()
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	u := c.resolve(path)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}
	if len(data) > maxBodySize {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", maxBodySize),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", snippet(data)),
		}
	}

	return data, nil
}

// resolve joins path onto the base URL. The path is taken literally, so
// opaque segments such as dataset ids are escaped rather than interpreted.
func (c *Client) resolve(path string) *url.URL {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	return c.baseURL.ResolveReference(rel)
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
