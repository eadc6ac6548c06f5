package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

type refreshTokensRepo struct {
	ext sqlx.ExtContext
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.ext.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID.String(), t.UserID.String(), t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByID(ctx context.Context, id idx.ID) (domain.RefreshToken, error) {
	var row refreshTokenRow
	err := sqlx.GetContext(ctx, r.ext, &row,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM refresh_tokens WHERE id = ?`, id.String())
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, id idx.ID) error {
	res, err := r.ext.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) DeleteAllUserRefreshTokens(ctx context.Context, userID idx.ID) error {
	_, err := r.ext.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID.String())
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.ext.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
