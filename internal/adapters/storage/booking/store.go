package booking

import (
	"context"
	"time"

	domain "studio/internal/domain/booking"
)

// Store persists Booking state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Booking, error)
	GetByUserAndEvent(ctx context.Context, userID, eventID string) (domain.Booking, bool, error)
	Save(ctx context.Context, value domain.Booking) error
	CountOpen(ctx context.Context, eventID string) (int, error)
	ListByEvent(ctx context.Context, eventID, status string) ([]domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	ListUnpaidForUser(ctx context.Context, userID string) ([]domain.Booking, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Booking, error)
	ListOutstandingFees(ctx context.Context) ([]domain.Booking, error)
	ListFeesForUser(ctx context.Context, userID string) ([]domain.Booking, error)
	ListReminderDue(ctx context.Context, eventsFrom, eventsTo, bookedBefore time.Time) ([]domain.Booking, error)
	ListUnpaidExpired(ctx context.Context, bookedBefore, checkoutBefore time.Time) ([]domain.Booking, error)
}
