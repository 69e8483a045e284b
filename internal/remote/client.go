// Package remote is the REST client for the blog backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is matched by a StatusError carrying a 404
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, body)
}

// Is lets errors.Is(err, ErrNotFound) match a 404
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// ProgressFunc wraps a download body, typically to render progress. size
// is -1 when the server does not announce it.
type ProgressFunc func(r io.Reader, size int64, description string) io.Reader

// Options configures a Client
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a whole request. Zero means no limit.
	Timeout  time.Duration
	Progress ProgressFunc
	// HTTPClient overrides the underlying client, mostly for tests
	HTTPClient *http.Client
}

// Client is one session against the backend. The API key is attached to
// every request except login.
type Client struct {
	baseURL  string
	http     *http.Client
	progress ProgressFunc

	mu     sync.RWMutex
	apiKey string
}

// New creates a Client
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:  base,
		http:     hc,
		progress: opts.Progress,
		apiKey:   opts.APIKey,
	}, nil
}

// SetAPIKey replaces the session credential
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// APIKey returns the session credential
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Posts returns the post service
func (c *Client) Posts() *PostService { return &PostService{c: c} }

// Pages returns the page service
func (c *Client) Pages() *PageService { return &PageService{c: c} }

// Files returns the file service
func (c *Client) Files() *FileService { return &FileService{c: c} }

// Root returns the import/export service
func (c *Client) Root() *RootService { return &RootService{c: c} }

// Auth returns the authentication service
func (c *Client) Auth() *AuthService { return &AuthService{c: c} }

// request describes one call
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	noAuth      bool
}

// send performs the call and returns the response for a 2xx status. The
// caller owns the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	query := url.Values{}
	for k, v := range r.query {
		query[k] = v
	}

	key := c.APIKey()
	if !r.noAuth {
		query.Set("api_key", key)
	}

	target := c.baseURL + r.path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", r.op, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.noAuth && key != "" {
		req.Header.Set("X-API-Key", key)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}

	slog.Debug("remote call",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{Op: r.op, Code: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// do performs the call and decodes a JSON response into out when non-nil
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", r.op, err)
	}
	return nil
}

// jsonRequest builds a request with a JSON encoded body
func jsonRequest(op, method, path string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: failed to encode body: %w", op, err)
	}
	return request{
		op:          op,
		method:      method,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, nil
}

// escape quotes a title or file path for use as a single path segment
func escape(s string) string {
	return url.PathEscape(s)
}
