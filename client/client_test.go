package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient wires a client to the given server with the retry
// delay skipped so tests run instantly.
func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c := New(srv.URL, opts...)
	c.sleep = func(time.Duration) {}
	return c
}

func TestBuildURL(t *testing.T) {
	c := New("http://api.local/")

	cases := map[string]string{
		"/auth/token":                 "http://api.local/auth/token",
		"auth/me":                     "http://api.local/auth/me",
		"//auth//me":                  "http://api.local/auth/me",
		"/seguimiento":                "http://api.local/seguimiento/",
		"/seguimiento/5":              "http://api.local/seguimiento/5/",
		"/seguimiento/5/seguimiento":  "http://api.local/seguimiento/5/seguimiento/",
		"/seguimiento?skip=0&limit=5": "http://api.local/seguimiento/?skip=0&limit=5",
		"/reports/acme":               "http://api.local/reports/acme",
	}
	for path, want := range cases {
		assert.Equal(t, want, c.buildURL(path), "path %q", path)
	}
}

func TestRetryOnceOn5xxThenSucceed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var states []ConnState
	c.Subscribe(func(s ConnState) { states = append(states, s) })

	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, c.Get(context.Background(), "/auth/me", &out))
	assert.Equal(t, 1, out.ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []ConnState{ConnReconnecting, ConnOK}, states)
	assert.Equal(t, ConnOK, c.State())
}

func TestTwoServerErrorsGoDown(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	var states []ConnState
	c.Subscribe(func(s ConnState) { states = append(states, s) })

	err := c.Get(context.Background(), "/auth/me", nil)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.Status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []ConnState{ConnReconnecting, ConnDown}, states)
}

func TestNetworkFailureGoesDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL)
	c.sleep = func(time.Duration) {}

	err := c.Get(context.Background(), "/auth/me", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, ConnDown, c.State())
}

func TestUnauthorizedClearsTokenAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Token inválido"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	redirected := false
	c := newTestClient(t, srv, WithNavigator(NavigatorFunc(func() { redirected = true })))
	c.Tokens().SetToken("expired-token")

	err := c.Get(context.Background(), "/auth/me", nil)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Token inválido", authErr.Detail)
	assert.Empty(t, c.Tokens().Token())
	assert.True(t, redirected)
	assert.Equal(t, ConnAuth, c.State())
}

func TestClientErrorKeepsConnectionOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"No encontrado"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	err := c.Get(context.Background(), "/seguimiento/999", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "No encontrado", apiErr.Detail)
	assert.Equal(t, ConnOK, c.State())
}

func TestNoContentSkipsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	assert.NoError(t, c.Delete(context.Background(), "/seguimiento/1"))
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "entidad@acme.gov.co", r.FormValue("username"))
		assert.Equal(t, "secreta123", r.FormValue("password"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.Login(context.Background(), "entidad@acme.gov.co", "secreta123"))
	assert.Equal(t, "abc123", c.Tokens().Token())
}

func TestAuthorizationHeaderSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.Tokens().SetToken("abc123")
	require.NoError(t, c.Get(context.Background(), "/auth/me", nil))
	assert.Equal(t, "Bearer abc123", gotAuth)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	c := New("http://api.local")

	var events int
	unsubscribe := c.Subscribe(func(ConnState) { events++ })

	c.setState(ConnReconnecting)
	assert.Equal(t, 1, events)

	// No notification when the state does not change.
	c.setState(ConnReconnecting)
	assert.Equal(t, 1, events)

	unsubscribe()
	c.setState(ConnDown)
	assert.Equal(t, 1, events)
}

func TestCanceledContextIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "/auth/me", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, errors.Is(netErr.Err, context.Canceled))
}
