package waitinglist

import (
	"context"

	domain "studio/internal/domain/waitinglist"
)

// Store persists WaitingListUser state.
type Store interface {
	Add(ctx context.Context, value domain.WaitingListUser) error
	Remove(ctx context.Context, userID, eventID string) error
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.WaitingListUser, error)
	ListByUser(ctx context.Context, userID string) ([]domain.WaitingListUser, error)
	DeleteByEvent(ctx context.Context, eventID string) error
}
