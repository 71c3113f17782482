// Package transport provides the authenticated JSON HTTP client shared
// by the inventory store client and the MDM source.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/stenbroen/assetsync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response body is kept for
// the error message.
const maxErrorBody = 2048

// Client provides JSON HTTP functionality with authentication.
type Client struct {
	http  *http.Client
	auth  Authenticator
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a transport client using the given authenticator and
// token. A nil authenticator sends unauthenticated requests.
func New(auth Authenticator, token string, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:  &http.Client{Timeout: DefaultHTTPTimeout},
		auth:  auth,
		token: token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs an HTTP request with authentication and common headers
// applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		c.auth.Apply(req, c.token)
	}

	req.Header.Set("Accept", "application/json")
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WrapAPI(0, url, err)
	}
	return c.doJSON(req, out)
}

// PostJSON performs a POST request with a JSON body and decodes the
// response into out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, url, body, out)
}

// PatchJSON performs a PATCH request with a JSON body and decodes the
// response into out.
func (c *Client) PatchJSON(ctx context.Context, url string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, url, body, out)
}

// PutJSON performs a PUT request with a JSON body and decodes the
// response into out.
func (c *Client) PutJSON(ctx context.Context, url string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPut, url, body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.WrapAPI(0, url, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return errors.WrapAPI(0, url, err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return errors.WrapAPI(0, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.NewAPIError(resp.StatusCode, req.URL.Path, string(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapParse("json", req.URL.Path, err)
	}
	return nil
}
