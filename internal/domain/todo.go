package domain

import (
	"time"

	"github.com/pocketlist/pocketlist/pkg/idx"
)

// Todo is a single list item owned by exactly one user.
type Todo struct {
	ID        idx.ID
	UserID    idx.ID
	Title     string
	Notes     string
	Done      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
