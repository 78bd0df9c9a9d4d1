package projections

import (
	"context"

	"studio/internal/adapters/storage/account"
	"studio/internal/adapters/storage/activitylog"
	"studio/internal/adapters/storage/event"
	domainAccount "studio/internal/domain/account"
	domainActivity "studio/internal/domain/activitylog"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
	domainGallery "studio/internal/domain/gallery"
	domainTimetable "studio/internal/domain/timetable"
	domainWaiting "studio/internal/domain/waitinglist"
	domainWebsite "studio/internal/domain/website"
)

// AccountStore interface for account queries.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (domainAccount.Account, error)
	List(ctx context.Context, filter account.ListFilter) ([]domainAccount.Account, error)
	Count(ctx context.Context, filter account.ListFilter) (int, error)
	Initials(ctx context.Context) (map[string]bool, error)
}

// EventStore interface for event queries.
type EventStore interface {
	GetByID(ctx context.Context, id string) (domainEvent.Event, error)
	GetBySlug(ctx context.Context, slug string) (domainEvent.Event, error)
	List(ctx context.Context, filter event.ListFilter) ([]domainEvent.Event, error)
}

// BookingStore interface for booking queries.
type BookingStore interface {
	GetByUserAndEvent(ctx context.Context, userID, eventID string) (domainBooking.Booking, bool, error)
	CountOpen(ctx context.Context, eventID string) (int, error)
	ListByEvent(ctx context.Context, eventID, status string) ([]domainBooking.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domainBooking.Booking, error)
	ListOutstandingFees(ctx context.Context) ([]domainBooking.Booking, error)
	ListFeesForUser(ctx context.Context, userID string) ([]domainBooking.Booking, error)
}

// WaitingListStore interface for waiting list queries.
type WaitingListStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]domainWaiting.WaitingListUser, error)
	ListByUser(ctx context.Context, userID string) ([]domainWaiting.WaitingListUser, error)
}

// ActivityLogStore interface for activity log queries.
type ActivityLogStore interface {
	List(ctx context.Context, filter activitylog.ListFilter) ([]domainActivity.Entry, error)
	Count(ctx context.Context, filter activitylog.ListFilter) (int, error)
}

// TimetableStore interface for timetable queries.
type TimetableStore interface {
	ListSessions(ctx context.Context, publicOnly bool) ([]domainTimetable.Session, error)
	ListVenues(ctx context.Context) ([]domainTimetable.Venue, error)
}

// GalleryStore interface for gallery queries.
type GalleryStore interface {
	ListCategories(ctx context.Context) ([]domainGallery.Category, error)
	ListImages(ctx context.Context, categoryID string) ([]domainGallery.Image, error)
	CountImages(ctx context.Context) (int, error)
}

// WebsiteStore interface for page queries.
type WebsiteStore interface {
	GetPageByName(ctx context.Context, name string) (domainWebsite.Page, error)
	ListPages(ctx context.Context, menuOnly bool) ([]domainWebsite.Page, error)
	ListAbout(ctx context.Context) ([]domainWebsite.AboutInfo, error)
}
