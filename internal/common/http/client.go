// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Client posts JSON to the remote services. It deliberately has no overall
// request timeout: streaming responses can legitimately last minutes, so callers
// bound requests with their context instead.
type Client struct {
	httpClient *http.Client
	token      string
}

// ClientOption customises the transport built by NewClient.
type ClientOption func(*http.Transport)

// WithResponseHeaderTimeout bounds the wait for response headers. Use it only for
// endpoints that answer before doing the work, such as a stream that starts at once.
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(t *http.Transport) {
		if d > 0 {
			t.ResponseHeaderTimeout = d
		}
	}
}

// NewClient builds a client whose dial is bounded by connectTimeout. A zero
// connectTimeout keeps the transport defaults.
func NewClient(connectTimeout time.Duration, token string, opts ...ClientOption) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if connectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	for _, opt := range opts {
		opt(transport)
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		token:      token,
	}
}

// NewClientWith wraps an existing *http.Client, typically an httptest server client.
func NewClientWith(c *http.Client, token string) *Client {
	return &Client{httpClient: c, token: token}
}

// PostJSON sends body as JSON with bearer authentication when a token is configured.
// The caller owns the returned body.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}
