package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studio/internal/adapters/payments"
	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/activitylog"
	"studio/internal/domain/booking"
	"studio/internal/domain/event"
	"studio/internal/domain/invoice"
	"studio/internal/domain/waitinglist"
)

// StudioConfig carries the studio-wide settings the booking use cases need.
type StudioConfig struct {
	StudioEmail    string   // receives booking and payment notices
	SupportEmail   string   // receives payment escalations
	AutoBookEmails []string // waiting list users booked in directly, in priority order
	CartTimeout    time.Duration
	InvoiceKey     string
}

// CartTimeoutMinutes is used in emails.
func (c StudioConfig) CartTimeoutMinutes() int {
	if c.CartTimeout <= 0 {
		return 15
	}
	return int(c.CartTimeout.Minutes())
}

// UserError is a business-rule refusal whose message is shown to the user as is.
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string { return e.Msg }
func (e *UserError) Unwrap() error { return e.Err }

var (
	ErrOutstandingFees = errors.New("Action forbidden until outstanding cancellation fees have been resolved")
	ErrNotYourBooking  = errors.New("booking belongs to another user")
	ErrEventPast       = errors.New("this event has already started")
	ErrEventCancelled  = errors.New("event has been cancelled")
)

// ActivityLogger appends to the admin activity log.
type ActivityLogger interface {
	Append(ctx context.Context, e activitylog.Entry) error
}

// EventGetter loads events.
type EventGetter interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

// AccountFinder loads accounts by id or email.
type AccountFinder interface {
	GetByID(ctx context.Context, id string) (domainAccount.Account, error)
	GetByEmail(ctx context.Context, email string) (domainAccount.Account, error)
}

// BookingStore is the booking persistence the booking use cases share.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (booking.Booking, error)
	GetByUserAndEvent(ctx context.Context, userID, eventID string) (booking.Booking, bool, error)
	Save(ctx context.Context, b booking.Booking) error
	CountOpen(ctx context.Context, eventID string) (int, error)
	ListFeesForUser(ctx context.Context, userID string) ([]booking.Booking, error)
}

// WaitingListStore is the waiting list persistence the booking use cases share.
type WaitingListStore interface {
	Add(ctx context.Context, w waitinglist.WaitingListUser) error
	Remove(ctx context.Context, userID, eventID string) error
	Exists(ctx context.Context, userID, eventID string) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]waitinglist.WaitingListUser, error)
}

// InvoiceGetter loads invoices by row id.
type InvoiceGetter interface {
	GetByID(ctx context.Context, id string) (invoice.Invoice, error)
}

// Refunder refunds card payments.
type Refunder interface {
	GetPaymentIntent(ctx context.Context, id string) (payments.PaymentIntent, error)
	Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error)
}

// BookingDeps holds dependencies for the user-facing booking use cases:
// toggling and cancelling bookings and the waiting list.
type BookingDeps struct {
	Accounts    AccountFinder
	Events      EventGetter
	Bookings    BookingStore
	WaitingList WaitingListStore
	Invoices    InvoiceGetter
	Payments    Refunder
	ActivityLog ActivityLogger
	Mailer      Mailer
	Studio      StudioConfig
	GenerateID  func() string
	Now         func() time.Time
}

// recordActivity appends an activity log entry. Failures are logged, not returned:
// the change being described has already been committed.
func recordActivity(ctx context.Context, log ActivityLogger, id string, now time.Time, format string, args ...any) {
	entry := activitylog.New(id, fmt.Sprintf(format, args...), now)
	if err := log.Append(ctx, entry); err != nil {
		slog.Error("activity_log_failed", "log", entry.Log, "error", err)
	}
}

// userLabel names a user in activity logs.
func userLabel(a domainAccount.Account) string {
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}

// hasOutstandingFees reports whether any of the user's bookings has an unpaid fee.
func hasOutstandingFees(ctx context.Context, bookings interface {
	ListFeesForUser(ctx context.Context, userID string) ([]booking.Booking, error)
}, userID string) (bool, error) {
	fees, err := bookings.ListFeesForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list fees for user %s: %w", userID, err)
	}
	for _, b := range fees {
		if b.HasOutstandingFee() {
			return true, nil
		}
	}
	return false, nil
}

// spacesLeft counts open bookings and returns the event's remaining places.
func spacesLeft(ctx context.Context, bookings interface {
	CountOpen(ctx context.Context, eventID string) (int, error)
}, ev event.Event) (int, error) {
	open, err := bookings.CountOpen(ctx, ev.ID)
	if err != nil {
		return 0, fmt.Errorf("count open bookings for %s: %w", ev.ID, err)
	}
	return ev.SpacesLeft(open), nil
}
