package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pocketlist/pocketlist/internal/metrics"
	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/internal/store/sqlite"
	"github.com/pocketlist/pocketlist/internal/ws"
	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

type testServer struct {
	server   *httptest.Server
	sessions *service.SessionService
	store    *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore("file:" + idx.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.GenerateSignerEdDSA("test-key")
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), "pocketlist-test")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hub := ws.NewHub(context.Background(), m)
	go hub.Run()
	t.Cleanup(hub.Stop)

	sessions := &service.SessionService{
		Store:      st,
		Signer:     signer,
		Issuer:     "pocketlist-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Metrics:    m,
	}

	logger := slogx.New(slogx.Config{Service: "pocketlist-test", Level: "error", Format: "text"})

	router := NewRouter(verifier, "test", st, hub, registry, logger)
	router.SessionService = sessions
	router.TodoService = &service.TodoService{Store: st}
	router.UserService = &service.UserService{Store: st}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{server: srv, sessions: sessions, store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookie := refreshCookie(resp)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	session := decodeBody[sessionResponse](t, resp)
	require.NotEmpty(t, session.AccessToken)
	require.Equal(t, "Bearer", session.TokenType)
	require.Equal(t, "alice@example.com", session.User.Email)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
			"name": "Imposter", "email": "alice@example.com", "password": "another password",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("me returns the profile", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/v1/auth/me", nil, bearer(session.AccessToken))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		user := decodeBody[userResponse](t, resp)
		require.Equal(t, "Alice", user.Name)
	})

	t.Run("wrong password and unknown email look identical", func(t *testing.T) {
		wrongPW := ts.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "alice@example.com", "password": "wrong",
		})
		unknown := ts.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "nobody@example.com", "password": "a strong password",
		})

		require.Equal(t, http.StatusUnauthorized, wrongPW.StatusCode)
		require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)

		bodyA := decodeBody[errorResponse](t, wrongPW)
		bodyB := decodeBody[errorResponse](t, unknown)
		require.Equal(t, bodyA, bodyB)
	})
}

func TestRefreshRotatesCookie(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := refreshCookie(resp)
	require.NotNil(t, first)
	resp.Body.Close()

	withCookie := func(c *http.Cookie) func(*http.Request) {
		return func(req *http.Request) { req.AddCookie(c) }
	}

	resp = ts.do(t, http.MethodPost, "/v1/auth/refresh", nil, withCookie(first))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := refreshCookie(resp)
	require.NotNil(t, second)
	require.NotEqual(t, first.Value, second.Value)
	resp.Body.Close()

	t.Run("replaying the consumed cookie is rejected", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/refresh", nil, withCookie(first))
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// the rejection also clears the cookie
		cleared := refreshCookie(resp)
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)
	})

	t.Run("the rotated cookie still works", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/refresh", nil, withCookie(second))
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh without a cookie is unauthorized", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/refresh", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Carol", "email": "carol@example.com", "password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cookie := refreshCookie(resp)
	resp.Body.Close()

	withCookie := func(req *http.Request) { req.AddCookie(cookie) }

	resp = ts.do(t, http.MethodPost, "/v1/auth/logout", nil, withCookie)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	t.Run("logout is idempotent", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/logout", nil, withCookie)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("revoked cookie cannot refresh", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/refresh", nil, withCookie)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout revokes tokens from earlier sessions too", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
			"name": "Carlos", "email": "carlos@example.com", "password": "a strong password",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		firstCookie := refreshCookie(resp)
		resp.Body.Close()

		resp = ts.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "carlos@example.com", "password": "a strong password",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		secondCookie := refreshCookie(resp)
		resp.Body.Close()

		resp = ts.do(t, http.MethodPost, "/v1/auth/logout", nil, func(req *http.Request) { req.AddCookie(secondCookie) })
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		resp = ts.do(t, http.MethodPost, "/v1/auth/refresh", nil, func(req *http.Request) { req.AddCookie(firstCookie) })
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTodosCRUD(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Dave", "email": "dave@example.com", "password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decodeBody[sessionResponse](t, resp)
	auth := bearer(session.AccessToken)

	resp = ts.do(t, http.MethodPost, "/v1/todos", map[string]string{
		"title": "buy milk", "notes": "two litres",
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[todoResponse](t, resp)
	require.Equal(t, "buy milk", created.Title)
	require.False(t, created.Done)

	t.Run("list", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/v1/todos", nil, auth)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		items := decodeBody[[]todoResponse](t, resp)
		require.Len(t, items, 1)
	})

	t.Run("update", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/v1/todos/"+created.ID, map[string]any{
			"title": "buy milk", "done": true,
		}, auth)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decodeBody[todoResponse](t, resp)
		require.True(t, updated.Done)
	})

	t.Run("another user cannot see it", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
			"name": "Eve", "email": "eve@example.com", "password": "a strong password",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		other := decodeBody[sessionResponse](t, resp)

		got := ts.do(t, http.MethodGet, "/v1/todos/"+created.ID, nil, bearer(other.AccessToken))
		defer got.Body.Close()
		require.Equal(t, http.StatusNotFound, got.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, "/v1/todos/"+created.ID, nil, auth)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		got := ts.do(t, http.MethodGet, "/v1/todos/"+created.ID, nil, auth)
		defer got.Body.Close()
		require.Equal(t, http.StatusNotFound, got.StatusCode)
	})

	t.Run("unauthenticated requests are rejected", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/v1/todos", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAdminEndpointRequiresRole(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Frank", "email": "frank@example.com", "password": "a strong password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decodeBody[sessionResponse](t, resp)

	got := ts.do(t, http.MethodGet, "/v1/admin/users", nil, bearer(session.AccessToken))
	defer got.Body.Close()
	require.Equal(t, http.StatusForbidden, got.StatusCode)
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		body := decodeBody[healthResponse](t, resp)
		require.Equal(t, "ok", body.Status)
	}

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
