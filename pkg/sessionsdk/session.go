package sessionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Session is an authenticated session with automatic token refresh.
//
// When a request comes back 401 the session refreshes the access token and
// retries the request once. Concurrent 401s share a single refresh call:
// the first failure starts the refresh, every other caller queues behind it,
// and all of them observe the same outcome in the order they arrived. A
// refresh call that fails for any reason (401, server error, transport
// failure) ends the session, force-logging-out exactly once.
type Session struct {
	client *SDKClient

	// OnForcedLogout runs once when the session dies underneath the user
	// (failed refresh or retried 401). Optional.
	OnForcedLogout func()

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	user        UserInfo

	refreshing bool
	waiters    []chan error

	loggingOut bool
	loggedOut  bool
}

// newSession builds a session from a login/register response.
func newSession(client *SDKClient, resp *SessionResponse) *Session {
	return &Session{
		client:      client,
		accessToken: resp.AccessToken,
		expiresAt:   resp.ExpiresAt,
		user:        resp.User,
	}
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// User returns the profile captured at authentication time.
func (s *Session) User() UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// LoggedOut reports whether the session has ended.
func (s *Session) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

// Refresh rotates the session's tokens immediately. Most callers never need
// this; the 401-retry path calls it automatically.
func (s *Session) Refresh(ctx context.Context) error {
	return s.refreshShared(ctx)
}

// refreshShared is the single-flight refresh. The caller that flips the
// refreshing flag performs the HTTP call; everyone else parks on a waiter
// channel and receives that call's result.
func (s *Session) refreshShared(ctx context.Context) error {
	s.mu.Lock()
	if s.loggedOut || s.loggingOut {
		s.mu.Unlock()
		return ErrLoggedOut
	}
	if s.refreshing {
		ch := make(chan error, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.refreshing = true
	s.mu.Unlock()

	resp, err := s.doRefreshCall(ctx)

	s.mu.Lock()
	s.refreshing = false
	waiters := s.waiters
	s.waiters = nil
	if err == nil {
		s.accessToken = resp.AccessToken
		s.expiresAt = resp.ExpiresAt
		s.user = resp.User
	}
	s.mu.Unlock()

	// Waiters complete in the order they queued
	for _, ch := range waiters {
		ch <- err
	}

	// Any refresh failure ends the session: a 401 means the server no longer
	// recognises it, and a transport error or 5xx leaves no way to keep the
	// token fresh, so retrying indefinitely would only mask a dead session.
	if err != nil {
		s.forceLogout()
	}
	return err
}

// doRefreshCall performs the actual refresh HTTP request. The refresh token
// travels in the cookie jar.
func (s *Session) doRefreshCall(ctx context.Context) (*SessionResponse, error) {
	var resp SessionResponse
	if err := s.client.postJSON(ctx, "/v1/auth/refresh", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the session and revokes the refresh token server side. It is
// idempotent and never fails on an already-dead session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.loggedOut || s.loggingOut {
		s.mu.Unlock()
		return nil
	}
	s.loggingOut = true
	s.mu.Unlock()

	// Best effort: the local session dies regardless of what the server says
	_ = s.client.postJSON(ctx, "/v1/auth/logout", nil, nil, http.StatusNoContent)

	s.mu.Lock()
	s.loggingOut = false
	s.loggedOut = true
	s.accessToken = ""
	s.mu.Unlock()

	return nil
}

// forceLogout ends the session without user intent, at most once.
func (s *Session) forceLogout() {
	s.mu.Lock()
	if s.loggedOut || s.loggingOut {
		s.mu.Unlock()
		return
	}
	s.loggingOut = true
	callback := s.OnForcedLogout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.postJSON(ctx, "/v1/auth/logout", nil, nil, http.StatusNoContent)

	s.mu.Lock()
	s.loggingOut = false
	s.loggedOut = true
	s.accessToken = ""
	s.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Do performs an authenticated JSON request. On a 401 response it refreshes
// once and retries; a second 401 force-logs-out and returns the error.
func (s *Session) Do(ctx context.Context, method, path string, body any, target any, expectedStatus int) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	err := s.attempt(ctx, method, path, payload, target, expectedStatus)
	if err == nil || !IsUnauthorized(err) {
		return err
	}

	// Access token rejected: refresh and retry exactly once
	if refreshErr := s.refreshShared(ctx); refreshErr != nil {
		return refreshErr
	}

	err = s.attempt(ctx, method, path, payload, target, expectedStatus)
	if err != nil && IsUnauthorized(err) {
		s.forceLogout()
	}
	return err
}

func (s *Session) attempt(ctx context.Context, method, path string, payload []byte, target any, expectedStatus int) error {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return ErrLoggedOut
	}
	token := s.accessToken
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return decodeJSON(resp, target, expectedStatus)
}

// Me fetches the current profile.
func (s *Session) Me(ctx context.Context) (UserInfo, error) {
	var user UserInfo
	err := s.Do(ctx, http.MethodGet, "/v1/auth/me", nil, &user, http.StatusOK)
	return user, err
}

// Todos lists the user's items.
func (s *Session) Todos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	err := s.Do(ctx, http.MethodGet, "/v1/todos", nil, &todos, http.StatusOK)
	return todos, err
}

// CreateTodo adds a new item.
func (s *Session) CreateTodo(ctx context.Context, input TodoInput) (Todo, error) {
	var todo Todo
	err := s.Do(ctx, http.MethodPost, "/v1/todos", input, &todo, http.StatusCreated)
	return todo, err
}

// UpdateTodo rewrites an item.
func (s *Session) UpdateTodo(ctx context.Context, id string, input TodoInput) (Todo, error) {
	var todo Todo
	err := s.Do(ctx, http.MethodPut, "/v1/todos/"+id, input, &todo, http.StatusOK)
	return todo, err
}

// DeleteTodo removes an item.
func (s *Session) DeleteTodo(ctx context.Context, id string) error {
	return s.Do(ctx, http.MethodDelete, "/v1/todos/"+id, nil, nil, http.StatusNoContent)
}
