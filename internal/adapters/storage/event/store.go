package event

import (
	"context"
	"time"

	domain "studio/internal/domain/event"
)

// Store persists Event state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Event, error)
	GetBySlug(ctx context.Context, slug string) (domain.Event, error)
	Save(ctx context.Context, value domain.Event) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Event, error)
	ListMatching(ctx context.Context, name, eventType string, date time.Time, venueID string) ([]domain.Event, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// ListFilter carries filtering parameters for List operations.
// Zero values mean "no restriction". Results are ordered by date.
type ListFilter struct {
	EventType        string
	From             time.Time // inclusive
	To               time.Time // exclusive
	ShowOnSiteOnly   bool
	IncludeCancelled bool
	Limit            int
	Offset           int
}
