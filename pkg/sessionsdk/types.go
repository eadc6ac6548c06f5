package sessionsdk

import (
	"encoding/json"
	"time"
)

// SessionResponse mirrors the body of a successful register, login or
// refresh call. The refresh token itself arrives in an HttpOnly cookie and
// is managed by the client's cookie jar.
type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public profile shape.
type UserInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Todo is a list item as returned by the service.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoInput is the request body for creating or updating a todo.
type TodoInput struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
	Done  bool   `json:"done"`
}

// Event is the push envelope received over the events socket.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventTokenExpiring warns that the access token is about to expire.
const EventTokenExpiring = "TOKEN_EXPIRING"

// TokenExpiringPayload carries the warning details.
type TokenExpiringPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
	LeadTime  string    `json:"lead_time"`
}
