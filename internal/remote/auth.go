package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// KeyResult is returned by login and key refresh
type KeyResult struct {
	Success bool   `json:"success"`
	APIKey  string `json:"api_key"`
	Message string `json:"message,omitempty"`
}

// AuthService manages the session credential
type AuthService struct {
	c *Client
}

// Login exchanges a name and password for an API key. On success the key
// becomes the session credential.
func (s *AuthService) Login(ctx context.Context, name, password string) (*KeyResult, error) {
	req, err := jsonRequest("login", http.MethodPost, "/api/meta/login", map[string]string{
		"name":     name,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	req.noAuth = true

	var result KeyResult
	if err := s.c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	if !result.Success || result.APIKey == "" {
		return &result, errors.New("login rejected: " + result.Message)
	}
	s.c.SetAPIKey(result.APIKey)
	return &result, nil
}

// Refresh replaces key with a freshly issued one and adopts it
func (s *AuthService) Refresh(ctx context.Context, key string) (*KeyResult, error) {
	if key == "" {
		key = s.c.APIKey()
	}
	if key == "" {
		return nil, errors.New("no api key to refresh")
	}

	var result KeyResult
	err := s.c.do(ctx, request{
		op:     "refresh api key",
		method: http.MethodPost,
		path:   "/api/meta/refresh-api-key",
		query:  url.Values{"api_key": {key}},
		noAuth: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	if !result.Success || result.APIKey == "" {
		return &result, errors.New("key refresh rejected: " + result.Message)
	}
	s.c.SetAPIKey(result.APIKey)
	return &result, nil
}

// Verify reports whether the session credential is accepted
func (s *AuthService) Verify(ctx context.Context) (bool, error) {
	err := s.c.do(ctx, request{op: "verify api key", method: http.MethodGet, path: "/api/meta/verify-api-key"}, nil)
	if err == nil {
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}

// Meta returns the public site metadata
func (s *AuthService) Meta(ctx context.Context) (map[string]any, error) {
	var meta map[string]any
	err := s.c.do(ctx, request{op: "get meta", method: http.MethodGet, path: "/api/meta"}, &meta)
	return meta, err
}
