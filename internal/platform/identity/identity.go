// Package identity talks to the external identity provider that owns user
// accounts and their metadata. The HTTP client speaks the GoTrue user API
// (GET /user, PUT /admin/users/{id}).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// User is the provider's view of an account.
type User struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email,omitempty"`
	Metadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// MetadataString returns the string metadata value for key, or "".
func (u *User) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

// Provider is the subset of the identity provider the portal consumes.
type Provider interface {
	// GetUser resolves the account behind a session access token.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// UpdateUserMetadata merges metadata into the target account using
	// administrative credentials.
	UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]interface{}) (*User, error)
}

// ErrUserNotFound is returned when the provider has no matching account.
var ErrUserNotFound = errors.New("user not found")

// ProviderError carries a non-2xx response from the provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Client is an HTTP Provider.
type Client struct {
	baseURL    string
	serviceKey string
	apiKey     string
	http       *http.Client
}

// NewClient returns a client for the provider at baseURL. serviceKey is the
// administrative bearer token used for metadata updates; apiKey, when set, is
// sent as the apikey header on every call.
func NewClient(baseURL, serviceKey, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		apiKey:     apiKey,
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("no access token")
	}
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]interface{}) (*User, error) {
	if c.serviceKey == "" {
		return nil, fmt.Errorf("identity provider service key is not configured")
	}
	body := map[string]interface{}{"user_metadata": metadata}
	var u User
	if err := c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), c.serviceKey, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{StatusCode: resp.StatusCode, Message: providerMessage(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// providerMessage extracts the human readable message from an error body.
// GoTrue uses "msg", newer versions "message", OAuth errors "error_description".
func providerMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
			if m != "" {
				return m
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fmt.Sprintf("identity provider returned status %d", resp.StatusCode)
}

// Static is an in-process Provider used in development mode and tests.
// Access tokens map directly to user ids.
type Static struct {
	mu     sync.RWMutex
	users  map[string]*User
	tokens map[string]string
}

func NewStatic() *Static {
	return &Static{
		users:  make(map[string]*User),
		tokens: make(map[string]string),
	}
}

// AddUser registers u and the access token that resolves to it.
func (s *Static) AddUser(token string, u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	cp.Metadata = copyMetadata(u.Metadata)
	s.users[u.ID] = &cp
	if token != "" {
		s.tokens[token] = u.ID
	}
}

func (s *Static) GetUser(_ context.Context, accessToken string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[accessToken]
	if !ok {
		return nil, fmt.Errorf("invalid session token")
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	cp.Metadata = copyMetadata(u.Metadata)
	return &cp, nil
}

func (s *Static) UpdateUserMetadata(_ context.Context, userID string, metadata map[string]interface{}) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if u.Metadata == nil {
		u.Metadata = make(map[string]interface{})
	}
	for k, v := range metadata {
		u.Metadata[k] = v
	}
	cp := *u
	cp.Metadata = copyMetadata(u.Metadata)
	return &cp, nil
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
