package account

import (
	"context"

	domain "studio/internal/domain/account"
)

// Store persists Account state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, value domain.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	Initials(ctx context.Context) (map[string]bool, error)
}

// Sort keys accepted by ListFilter.SortBy.
const (
	SortByName   = "name"
	SortByEmail  = "email"
	SortByJoined = "joined"
)

// ListFilter carries filtering parameters for List operations.
// Initial restricts to first names starting with that letter (case-insensitive).
// An empty or unknown SortBy orders by name.
type ListFilter struct {
	Limit   int
	Offset  int
	Role    string
	Initial string
	Search  string
	SortBy  string
	Desc    bool
}
