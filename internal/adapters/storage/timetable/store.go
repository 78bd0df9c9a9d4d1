package timetable

import (
	"context"

	domain "studio/internal/domain/timetable"
)

// Store persists timetable sessions, venues and session types.
type Store interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
	SaveSession(ctx context.Context, value domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, publicOnly bool) ([]domain.Session, error)

	GetVenue(ctx context.Context, id string) (domain.Venue, error)
	SaveVenue(ctx context.Context, value domain.Venue) error
	DeleteVenue(ctx context.Context, id string) error
	ListVenues(ctx context.Context) ([]domain.Venue, error)

	GetSessionType(ctx context.Context, id string) (domain.SessionType, error)
	SaveSessionType(ctx context.Context, value domain.SessionType) error
	DeleteSessionType(ctx context.Context, id string) error
	ListSessionTypes(ctx context.Context) ([]domain.SessionType, error)
}
