package store

import (
	"context"
	"errors"
	"time"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and to
// actively stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	Todos() Todos

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation). The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error, the
	// transaction is rolled back; otherwise it is committed. This is the
	// recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id idx.ID) (domain.User, error)

	// GetUserByEmail is used during login; emails are stored lowercased.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateLastLogin stamps last_login and bumps updated_at.
	UpdateLastLogin(ctx context.Context, userID idx.ID, at time.Time) error

	// ListUsers returns all users ordered by creation date (newest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// DeleteUser cascades to refresh_tokens and todos (per schema).
	DeleteUser(ctx context.Context, userID idx.ID) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByID returns the token record by its public id half.
	GetRefreshTokenByID(ctx context.Context, id idx.ID) (domain.RefreshToken, error)

	// DeleteRefreshToken removes a single token. Rotation deletes the
	// consumed token and inserts its replacement in one transaction.
	DeleteRefreshToken(ctx context.Context, id idx.ID) error

	// DeleteAllUserRefreshTokens is the bulk form used on logout.
	DeleteAllUserRefreshTokens(ctx context.Context, userID idx.ID) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Todos interface {
	// CreateTodo inserts a new item (id is ULID).
	CreateTodo(ctx context.Context, t domain.Todo) error

	// GetTodoByID returns an item only when owned by userID.
	GetTodoByID(ctx context.Context, userID, id idx.ID) (domain.Todo, error)

	// ListTodosForUser returns the user's items ordered by creation date.
	ListTodosForUser(ctx context.Context, userID idx.ID) ([]domain.Todo, error)

	// UpdateTodo rewrites title, notes and done for an owned item.
	UpdateTodo(ctx context.Context, t domain.Todo) error

	// DeleteTodo removes an owned item.
	DeleteTodo(ctx context.Context, userID, id idx.ID) error
}
