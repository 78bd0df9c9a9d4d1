package activitylog

import (
	"context"
	"time"

	domain "studio/internal/domain/activitylog"
)

// Store persists the activity log.
type Store interface {
	Append(ctx context.Context, e domain.Entry) error
	List(ctx context.Context, filter ListFilter) ([]domain.Entry, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	DeleteByLog(ctx context.Context, log string) error
}

// ListFilter narrows the admin listing. Entries come back newest first unless Oldest is set.
type ListFilter struct {
	Search           string
	Day              time.Time // entries on this UTC calendar day
	HideHousekeeping bool
	Oldest           bool
	Limit            int
	Offset           int
}
