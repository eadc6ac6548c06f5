package domain

import (
	"time"

	"github.com/pocketlist/pocketlist/pkg/idx"
)

// TokenPair is what a successful login, register or refresh hands back:
// a short-lived JWT access token plus a single-use refresh token in
// "tokenID:secret" form.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshToken is the stored half of a refresh credential. Only the SHA-256
// fingerprint of the secret is persisted; the plaintext secret exists solely
// in the client's copy of the combined token.
type RefreshToken struct {
	ID        idx.ID
	UserID    idx.ID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
