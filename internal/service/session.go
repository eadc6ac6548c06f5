package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/metrics"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/pkg/cryptox"
	"github.com/pocketlist/pocketlist/pkg/idx"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// dummyHash keeps the password verification cost identical whether or not
// the email exists, so login timing does not reveal account presence.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SessionService owns credential verification and the refresh token
// lifecycle. Refresh tokens are opaque "tokenID:secret" pairs; only the
// SHA-256 fingerprint of the secret is persisted, and rotation consumes the
// presented token and mints a replacement inside a single transaction.
type SessionService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Notifier, when set, is armed after every successful issuance and
	// cancelled on logout.
	Notifier *ExpiryNotifier

	Metrics *metrics.Metrics

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates a new account and immediately issues a session for it.
// Returns ErrEmailTaken when the email is already registered.
func (s *SessionService) Register(ctx context.Context, name, email, password string) (domain.User, domain.TokenPair, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	user := domain.User{
		ID:           idx.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	l.Info("user registered", slog.String("user_id", user.ID.String()))
	if s.Metrics != nil {
		s.Metrics.Registrations.Inc()
	}
	s.armNotifier(user.ID, pair.AccessExpiresAt)

	return user, pair, nil
}

// Login verifies the credentials and issues a fresh session. All failures
// collapse into ErrInvalidCredentials so callers cannot distinguish an
// unknown email from a wrong password.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.User, domain.TokenPair, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("login failed", slog.String("user_id", user.ID.String()))
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateLastLogin(ctx, user.ID, now); err != nil {
			return err
		}
		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID.String()))
	if s.Metrics != nil {
		s.Metrics.Logins.Inc()
	}
	s.armNotifier(user.ID, pair.AccessExpiresAt)

	return user, pair, nil
}

// Refresh rotates the presented refresh token. The consumed token is deleted
// and its replacement inserted in the same transaction, so a token can be
// redeemed exactly once; replayed or unknown tokens get ErrInvalidRefresh.
func (s *SessionService) Refresh(ctx context.Context, presented string) (domain.User, domain.TokenPair, error) {
	now := s.now()
	l := slogx.FromContext(ctx)

	tokenID, secret, err := splitRefreshToken(presented)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, ErrInvalidRefresh
	}

	var (
		user domain.User
		pair domain.TokenPair
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.RefreshTokens().GetRefreshTokenByID(ctx, tokenID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if !cryptox.VerifyFingerprint(secret, record.TokenHash) {
			return ErrInvalidRefresh
		}
		if record.Expired(now) {
			return ErrInvalidRefresh
		}

		user, err = tx.Users().GetUserByID(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.RefreshTokens().DeleteRefreshToken(ctx, record.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) {
			l.Warn("refresh rejected")
			if s.Metrics != nil {
				s.Metrics.RefreshReuseDenied.Inc()
			}
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	l.Debug("refresh token rotated", slog.String("user_id", user.ID.String()))
	if s.Metrics != nil {
		s.Metrics.Refreshes.Inc()
	}
	s.armNotifier(user.ID, pair.AccessExpiresAt)

	return user, pair, nil
}

// Logout resolves the user behind the presented refresh token and revokes
// every refresh token that user holds, not just the presented one; stale
// records from prior sessions must not outlive an explicit logout. Any
// pending expiry warning is cancelled. It is idempotent: an unknown,
// malformed or already consumed token still results in a logged-out session.
func (s *SessionService) Logout(ctx context.Context, presented string) error {
	l := slogx.FromContext(ctx)

	if s.Metrics != nil {
		s.Metrics.Logouts.Inc()
	}

	tokenID, _, err := splitRefreshToken(presented)
	if err != nil {
		return nil
	}

	record, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.Store.RefreshTokens().DeleteAllUserRefreshTokens(ctx, record.UserID); err != nil {
		return err
	}

	if s.Notifier != nil {
		s.Notifier.Cancel(record.UserID)
	}

	l.Info("logout", slog.String("user_id", record.UserID.String()))
	return nil
}

// LogoutAll revokes every refresh token the user holds.
func (s *SessionService) LogoutAll(ctx context.Context, userID idx.ID) error {
	if err := s.Store.RefreshTokens().DeleteAllUserRefreshTokens(ctx, userID); err != nil {
		return err
	}
	if s.Notifier != nil {
		s.Notifier.Cancel(userID)
	}
	if s.Metrics != nil {
		s.Metrics.Logouts.Inc()
	}
	return nil
}

// issuePair signs a new access token and persists a fresh refresh token.
func (s *SessionService) issuePair(ctx context.Context, tx store.Tx, user domain.User, now time.Time) (domain.TokenPair, error) {
	claims := jwtx.NewAccessClaims(user.ID.String(), user.Email, user.Role, user.Name, s.AccessTTL, s.Issuer, now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	record := domain.RefreshToken{
		ID:        idx.New(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(secret),
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(s.AccessTTL),
		RefreshToken:     record.ID.String() + ":" + secret,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *SessionService) armNotifier(userID idx.ID, accessExpiresAt time.Time) {
	if s.Notifier != nil {
		s.Notifier.Arm(userID, accessExpiresAt)
	}
}

// splitRefreshToken parses the "tokenID:secret" wire form.
func splitRefreshToken(presented string) (idx.ID, string, error) {
	rawID, secret, ok := strings.Cut(presented, ":")
	if !ok || secret == "" {
		return idx.Zero, "", ErrInvalidRefresh
	}
	id, err := idx.Parse(rawID)
	if err != nil {
		return idx.Zero, "", ErrInvalidRefresh
	}
	return id, secret, nil
}
