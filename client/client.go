// Package client talks to the plan de mejoramiento API. It owns the
// bearer token, retries transient failures once, and exposes an
// observable connection state so callers can surface outages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ConnState describes the last known health of the API connection.
type ConnState string

const (
	ConnOK           ConnState = "ok"
	ConnReconnecting ConnState = "reconnecting"
	ConnDown         ConnState = "down"
	ConnAuth         ConnState = "auth"
)

const (
	requestTimeout = 8 * time.Second
	retryDelay     = 1 * time.Second
)

// TokenStore holds the bearer token between requests.
type TokenStore interface {
	Token() string
	SetToken(token string)
	Clear()
}

// MemoryTokenStore keeps the token in memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryTokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Navigator is notified when the session expires and the user must log
// in again.
type Navigator interface {
	RedirectToLogin()
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func()

func (f NavigatorFunc) RedirectToLogin() { f() }

// Client is the API client. Zero value is not usable, construct with New.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenStore
	nav     Navigator

	mu      sync.Mutex
	state   ConnState
	subs    map[int]func(ConnState)
	nextSub int

	// sleep is replaced in tests to skip the real retry delay
	sleep func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTokenStore overrides the default in-memory token store.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithNavigator sets the redirect hook for expired sessions.
func WithNavigator(n Navigator) Option {
	return func(c *Client) { c.nav = n }
}

// New creates a client for the given API base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: requestTimeout},
		tokens:  &MemoryTokenStore{},
		state:   ConnOK,
		subs:    make(map[int]func(ConnState)),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the client's token store.
func (c *Client) Tokens() TokenStore { return c.tokens }

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a listener for connection state changes and
// returns a function that removes it.
func (c *Client) Subscribe(fn func(ConnState)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := make([]func(ConnState), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// buildURL joins the base URL and path, collapsing duplicate slashes.
// Seguimiento paths get a trailing slash because the server registers
// those routes with one and a redirect would drop the request body.
func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	rawPath, query, hasQuery := strings.Cut(path, "?")
	if strings.HasPrefix(rawPath, "/seguimiento") && !strings.HasSuffix(rawPath, "/") {
		rawPath += "/"
	}
	if hasQuery {
		return c.baseURL + rawPath + "?" + query
	}
	return c.baseURL + rawPath
}

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/token",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out)
	if err != nil {
		return err
	}
	if out.AccessToken == "" {
		return &AuthError{Status: http.StatusUnauthorized, Detail: "empty token"}
	}
	c.tokens.SetToken(out.AccessToken)
	return nil
}

// Get performs a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete performs a DELETE request. A 204 response yields nil.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, reader, "application/json", out)
}

// do runs one request with a single retry on 5xx or network failure.
// The body is buffered up front so the retry can replay it.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
	}

	fullURL := c.buildURL(path)

	attempt := func() (*http.Response, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return c.httpc.Do(req)
	}

	resp, err := attempt()
	if err != nil || resp.StatusCode >= 500 {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			c.setState(ConnDown)
			return &NetworkError{Err: ctx.Err()}
		}

		c.setState(ConnReconnecting)
		c.sleep(retryDelay)

		resp, err = attempt()
		if err != nil {
			c.setState(ConnDown)
			return &NetworkError{Err: err}
		}
		if resp.StatusCode >= 500 {
			bodyText := readBodySnippet(resp)
			resp.Body.Close()
			c.setState(ConnDown)
			return &ServerError{Status: resp.StatusCode, Body: bodyText}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.setState(ConnAuth)
		c.tokens.Clear()
		if c.nav != nil {
			c.nav.RedirectToLogin()
		}
		return &AuthError{Status: resp.StatusCode, Detail: readDetail(resp)}
	}

	if resp.StatusCode >= 400 {
		c.setState(ConnOK)
		return &APIError{Status: resp.StatusCode, Detail: readDetail(resp)}
	}

	c.setState(ConnOK)

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readBodySnippet(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.TrimSpace(string(data))
}

// readDetail extracts the "message" or "detail" field from an error
// response, falling back to the raw body.
func readDetail(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return strings.TrimSpace(string(data))
}
