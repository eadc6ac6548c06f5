package service

import (
	"context"
	"errors"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

var ErrUserNotFound = errors.New("user_not_found")

// UserService exposes account lookups for the profile and admin surfaces.
type UserService struct {
	Store store.Store
}

func (s *UserService) Get(ctx context.Context, id idx.ID) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// List returns all accounts, newest first. Admin only; the HTTP layer
// enforces the role.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}
