// Package api is the PlanPerfect backend client. Every call goes through one
// Client that attaches the API key, negotiates the content type and turns
// backend failures into *Error.
package api

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
)

// Header names sent on every request.
const (
	HeaderAPIKey = "X-API-Key"
	HeaderUserID = "X-User-Id"
)

// DefaultTimeout applies when Config.Timeout is zero. Document generation and
// floor-plan extraction are slow, so this is generous.
const DefaultTimeout = 120 * time.Second

// Config holds client settings.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.planperfect.app".
	BaseURL string

	// APIKey is the static key attached to every call.
	APIKey string

	// Timeout for HTTP requests (default: DefaultTimeout).
	Timeout time.Duration

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client is the shared backend client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
	}, nil
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithUser scopes the request to a user.
func WithUser(uid string) RequestOption {
	return func(r *http.Request) {
		if uid != "" {
			r.Header.Set(HeaderUserID, uid)
		}
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// Get decodes the JSON response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts)
}

// Post sends body (JSON or *Form) and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts)
}

// Delete issues DELETE path and decodes the JSON response into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out, opts)
}

// Download returns the raw response body and its content type. Used for
// binary payloads such as generated PDFs.
func (c *Client) Download(ctx context.Context, method, path string, body any, opts ...RequestOption) ([]byte, string, error) {
	resp, err := c.do(ctx, method, path, body, opts)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", networkError(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", classify(resp.StatusCode, backendText(data))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, opts []RequestOption) error {
	resp, err := c.do(ctx, method, path, body, opts)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, backendText(data))
	}

	// Some endpoints answer 200 with {"error": "..."}.
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		var env struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &env); err == nil && env.Error != "" {
			return classify(resp.StatusCode, env.Error)
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindInternal, Status: resp.StatusCode, Message: "unexpected response", Detail: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

// do builds and sends the request. Transport failures become KindNetwork.
func (c *Client) do(ctx context.Context, method, path string, body any, opts []RequestOption) (*http.Response, error) {
	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "could not encode request", Detail: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "could not build request", Detail: err.Error(), Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	return resp, nil
}

// encodeBody picks the content type from the payload shape.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Form:
		buf, ct, err := b.encode()
		if err != nil {
			return nil, "", err
		}
		return buf, ct, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
