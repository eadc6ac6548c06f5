package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

type todosRepo struct {
	ext sqlx.ExtContext
}

func (r *todosRepo) CreateTodo(ctx context.Context, t domain.Todo) error {
	_, err := r.ext.ExecContext(ctx,
		`INSERT INTO todos (id, user_id, title, notes, done, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.UserID.String(), t.Title, t.Notes, t.Done, t.CreatedAt, t.UpdatedAt)
	return mapConstraint(err)
}

func (r *todosRepo) GetTodoByID(ctx context.Context, userID, id idx.ID) (domain.Todo, error) {
	var row todoRow
	err := sqlx.GetContext(ctx, r.ext, &row,
		`SELECT id, user_id, title, notes, done, created_at, updated_at
		 FROM todos WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return domain.Todo{}, mapNotFound(err)
	}
	return mapTodo(row), nil
}

func (r *todosRepo) ListTodosForUser(ctx context.Context, userID idx.ID) ([]domain.Todo, error) {
	var rows []todoRow
	err := sqlx.SelectContext(ctx, r.ext, &rows,
		`SELECT id, user_id, title, notes, done, created_at, updated_at
		 FROM todos WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, err
	}

	todos := make([]domain.Todo, 0, len(rows))
	for _, row := range rows {
		todos = append(todos, mapTodo(row))
	}
	return todos, nil
}

func (r *todosRepo) UpdateTodo(ctx context.Context, t domain.Todo) error {
	res, err := r.ext.ExecContext(ctx,
		`UPDATE todos SET title = ?, notes = ?, done = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Title, t.Notes, t.Done, t.UpdatedAt, t.ID.String(), t.UserID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *todosRepo) DeleteTodo(ctx context.Context, userID, id idx.ID) error {
	res, err := r.ext.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
