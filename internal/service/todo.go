package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

var (
	ErrTodoNotFound = errors.New("todo_not_found")
	ErrEmptyTitle   = errors.New("empty_title")
)

// TodoService owns list items. Every operation is scoped to the calling
// user; items belonging to other users behave as if they do not exist.
type TodoService struct {
	Store store.Store

	Now func() time.Time
}

func (s *TodoService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TodoService) Create(ctx context.Context, userID idx.ID, title, notes string) (domain.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Todo{}, ErrEmptyTitle
	}

	now := s.now()
	item := domain.Todo{
		ID:        idx.New(),
		UserID:    userID,
		Title:     title,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Todos().CreateTodo(ctx, item); err != nil {
		return domain.Todo{}, err
	}
	return item, nil
}

func (s *TodoService) Get(ctx context.Context, userID, id idx.ID) (domain.Todo, error) {
	item, err := s.Store.Todos().GetTodoByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Todo{}, ErrTodoNotFound
		}
		return domain.Todo{}, err
	}
	return item, nil
}

func (s *TodoService) List(ctx context.Context, userID idx.ID) ([]domain.Todo, error) {
	return s.Store.Todos().ListTodosForUser(ctx, userID)
}

func (s *TodoService) Update(ctx context.Context, userID, id idx.ID, title, notes string, done bool) (domain.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Todo{}, ErrEmptyTitle
	}

	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return domain.Todo{}, err
	}

	item.Title = title
	item.Notes = notes
	item.Done = done
	item.UpdatedAt = s.now()

	if err := s.Store.Todos().UpdateTodo(ctx, item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Todo{}, ErrTodoNotFound
		}
		return domain.Todo{}, err
	}
	return item, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id idx.ID) error {
	if err := s.Store.Todos().DeleteTodo(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTodoNotFound
		}
		return err
	}
	return nil
}
