package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pocketlist/pocketlist/internal/store/sqlite"
	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
)

func newTestSessionService(t *testing.T) (*SessionService, *jwtx.EdDSAVerifier) {
	t.Helper()

	st, err := sqlite.NewStore("file:" + idx.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.GenerateSignerEdDSA("test-key")
	require.NoError(t, err)

	svc := &SessionService{
		Store:      st,
		Signer:     signer,
		Issuer:     "pocketlist-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), "pocketlist-test")
	return svc, verifier
}

func TestRegisterIssuesVerifiableSession(t *testing.T) {
	t.Parallel()

	svc, verifier := newTestSessionService(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, "Alice", "Alice@Example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)

	claims, err := verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "user", claims.Role)

	id, secret, ok := strings.Cut(pair.RefreshToken, ":")
	require.True(t, ok)
	require.NotEmpty(t, secret)
	_, err = idx.Parse(id)
	require.NoError(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Alice", "alice@example.com", "pw one two three")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "Imposter", "ALICE@example.com", "different password")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Bob", "bob@example.com", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "bob@example.com", "wrong password")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email yields the same error", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginStampsLastLogin(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "Carol", "carol@example.com", "a long password")
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "carol@example.com", "a long password")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	stored, err := svc.Store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()

	svc, verifier := newTestSessionService(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, "Dave", "dave@example.com", "pass phrase here")
	require.NoError(t, err)

	t.Run("rotation issues a new pair", func(t *testing.T) {
		refreshed, next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, refreshed.ID)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		claims, err := verifier.Verify(next.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID.String(), claims.Subject)

		t.Run("the consumed token is single use", func(t *testing.T) {
			_, _, err := svc.Refresh(ctx, pair.RefreshToken)
			require.ErrorIs(t, err, ErrInvalidRefresh)
		})

		t.Run("the replacement still works", func(t *testing.T) {
			_, _, err := svc.Refresh(ctx, next.RefreshToken)
			require.NoError(t, err)
		})
	})
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "Erin", "erin@example.com", "pass phrase here")
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, "not-a-token")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, idx.New().String()+":somesecret")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("tampered secret", func(t *testing.T) {
		id, _, ok := strings.Cut(pair.RefreshToken, ":")
		require.True(t, ok)
		_, _, err := svc.Refresh(ctx, id+":forgedsecret")
		require.ErrorIs(t, err, ErrInvalidRefresh)

		t.Run("the genuine token survives a forgery attempt", func(t *testing.T) {
			_, _, err := svc.Refresh(ctx, pair.RefreshToken)
			require.NoError(t, err)
		})
	})
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	issuedAt := time.Now()
	svc.Now = func() time.Time { return issuedAt }

	_, pair, err := svc.Register(ctx, "Frank", "frank@example.com", "pass phrase here")
	require.NoError(t, err)

	svc.Now = func() time.Time { return issuedAt.Add(svc.RefreshTTL + time.Second) }

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "Grace", "grace@example.com", "pass phrase here")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, "garbage"))
	require.NoError(t, svc.Logout(ctx, ""))

	t.Run("revoked token cannot refresh", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestLogoutRevokesEveryTokenForTheUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	// Register and log in again so the user holds two live refresh tokens
	_, first, err := svc.Register(ctx, "Judy", "judy@example.com", "pass phrase here")
	require.NoError(t, err)

	_, second, err := svc.Login(ctx, "judy@example.com", "pass phrase here")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, second.RefreshToken))

	t.Run("stale tokens from earlier sessions die too", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("other users are untouched", func(t *testing.T) {
		_, other, err := svc.Register(ctx, "Karl", "karl@example.com", "pass phrase here")
		require.NoError(t, err)
		require.NoError(t, svc.Logout(ctx, second.RefreshToken))
		_, _, err = svc.Refresh(ctx, other.RefreshToken)
		require.NoError(t, err)
	})
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	user, first, err := svc.Register(ctx, "Heidi", "heidi@example.com", "pass phrase here")
	require.NoError(t, err)

	_, second, err := svc.Login(ctx, "heidi@example.com", "pass phrase here")
	require.NoError(t, err)

	require.NoError(t, svc.LogoutAll(ctx, user.ID))

	for _, tok := range []string{first.RefreshToken, second.RefreshToken} {
		_, _, err := svc.Refresh(ctx, tok)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	}
}

func TestSessionArmsNotifier(t *testing.T) {
	t.Parallel()

	svc, _ := newTestSessionService(t)
	ctx := context.Background()

	svc.Notifier = NewExpiryNotifier(30*time.Second, func(idx.ID, time.Time, time.Duration) error {
		return nil
	}, nil, nil)
	defer svc.Notifier.Stop()

	user, pair, err := svc.Register(ctx, "Ivan", "ivan@example.com", "pass phrase here")
	require.NoError(t, err)
	require.True(t, svc.Notifier.Pending(user.ID))

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.False(t, svc.Notifier.Pending(user.ID))
}
