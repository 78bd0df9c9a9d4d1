package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain/booking"
	"studio/internal/domain/event"
)

// EventStore is the event persistence the admin event use cases need.
type EventStore interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
	Save(ctx context.Context, e event.Event) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// EventBookingStore lists and updates an event's bookings.
type EventBookingStore interface {
	ListByEvent(ctx context.Context, eventID, status string) ([]booking.Booking, error)
	Save(ctx context.Context, b booking.Booking) error
}

// EventWaitingListStore clears an event's waiting list.
type EventWaitingListStore interface {
	DeleteByEvent(ctx context.Context, eventID string) error
}

// EventDeps holds dependencies for creating, editing and cancelling events.
type EventDeps struct {
	Events      EventStore
	Bookings    EventBookingStore
	WaitingList EventWaitingListStore
	Accounts    AccountFinder
	Invoices    InvoiceGetter
	Payments    Refunder
	ActivityLog ActivityLogger
	Mailer      Mailer
	GenerateID  func() string
	Now         func() time.Time
}

// SaveEventInput carries a created or edited event. An empty Event.ID creates a new event.
type SaveEventInput struct {
	Event   event.Event
	AdminID string
}

// ExecuteSaveEvent validates and stores an event, assigning an id and a unique slug to new events.
// PRE: caller is staff
// POST: event persisted; Slug is unique across events
func ExecuteSaveEvent(ctx context.Context, input SaveEventInput, deps EventDeps) (event.Event, error) {
	ev := input.Event
	if err := ev.Validate(); err != nil {
		return event.Event{}, &UserError{Msg: err.Error(), Err: err}
	}
	admin, err := deps.Accounts.GetByID(ctx, input.AdminID)
	if err != nil {
		return event.Event{}, fmt.Errorf("get admin account: %w", err)
	}

	action := "updated"
	if ev.ID == "" {
		ev.ID = deps.GenerateID()
		action = "created"
	}
	if ev.Slug == "" {
		slug, err := uniqueSlug(ctx, deps.Events, ev.Name, ev.Date)
		if err != nil {
			return event.Event{}, err
		}
		ev.Slug = slug
	}
	if err := deps.Events.Save(ctx, ev); err != nil {
		return event.Event{}, fmt.Errorf("save event: %w", err)
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"%s %s (id %s) %s by admin user %s", capitalise(ev.TypeLabel()), ev, ev.ID, action, userLabel(admin))
	slog.Info("event_event", "event", "event_"+action, "event_id", ev.ID, "slug", ev.Slug)
	return ev, nil
}

// CancelEventInput identifies the event being cancelled.
type CancelEventInput struct {
	EventID string
	AdminID string
}

// CancelEventResult summarises a cancelled event.
type CancelEventResult struct {
	CancelledBookings int
	Refunded          int   // bookings refunded through the gateway
	RefundTotal       int64 // pence
	RefundFailures    []string
}

// ExecuteCancelEvent cancels an event and every open booking on it.
// Card payments are refunded; a failed refund is reported but does not stop the cancellation.
// PRE: event is not already cancelled
// POST: event Cancelled=true; its OPEN bookings are CANCELLED; waiting list is empty
func ExecuteCancelEvent(ctx context.Context, input CancelEventInput, deps EventDeps) (CancelEventResult, error) {
	var res CancelEventResult

	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return res, fmt.Errorf("get event: %w", err)
	}
	if ev.Cancelled {
		return res, event.ErrAlreadyCancelled
	}
	admin, err := deps.Accounts.GetByID(ctx, input.AdminID)
	if err != nil {
		return res, fmt.Errorf("get admin account: %w", err)
	}

	open, err := deps.Bookings.ListByEvent(ctx, ev.ID, booking.StatusOpen)
	if err != nil {
		return res, fmt.Errorf("list bookings: %w", err)
	}

	bookingDeps := BookingDeps{Invoices: deps.Invoices, Payments: deps.Payments}
	mails := make([]Mail, 0, len(open))
	for _, b := range open {
		var refunded int64
		if b.Paid && deps.Payments != nil {
			refunded, err = refundBooking(ctx, bookingDeps, ev, b)
			if err != nil {
				slog.Error("event_cancel_refund_failed", "booking_id", b.ID, "event_id", ev.ID, "error", err)
				res.RefundFailures = append(res.RefundFailures, b.ID)
			}
		}
		if refunded > 0 {
			b.Paid = false
			res.Refunded++
			res.RefundTotal += refunded
		}
		b.Status = booking.StatusCancelled
		if err := deps.Bookings.Save(ctx, b); err != nil {
			return res, fmt.Errorf("cancel booking %s: %w", b.ID, err)
		}
		res.CancelledBookings++

		user, err := deps.Accounts.GetByID(ctx, b.UserID)
		if err != nil {
			slog.Warn("event_cancel_user_missing", "user_id", b.UserID, "error", err)
			continue
		}
		mails = append(mails, Mail{
			Template: "event_cancelled",
			To:       []string{user.Email},
			Data: map[string]any{
				"Name":     user.FirstName,
				"Event":    ev.String(),
				"Refunded": refunded > 0,
				"Refund":   refunded,
			},
		})
	}

	if err := deps.WaitingList.DeleteByEvent(ctx, ev.ID); err != nil {
		return res, fmt.Errorf("clear waiting list: %w", err)
	}
	if err := ev.Cancel(); err != nil {
		return res, err
	}
	if err := deps.Events.Save(ctx, ev); err != nil {
		return res, fmt.Errorf("save event: %w", err)
	}

	deps.Mailer.SendAll(ctx, mails)

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"%s %s cancelled by admin user %s; %d open booking(s) cancelled, %d refunded",
		capitalise(ev.TypeLabel()), ev, userLabel(admin), res.CancelledBookings, res.Refunded)
	slog.Info("event_event", "event", "event_cancelled", "event_id", ev.ID,
		"bookings", res.CancelledBookings, "refunded", res.Refunded, "refund_failures", len(res.RefundFailures))
	return res, nil
}

// uniqueSlug returns the event's generated slug, suffixed with -1, -2... when already taken.
func uniqueSlug(ctx context.Context, events interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}, name string, date time.Time) (string, error) {
	base := event.GenerateSlug(name, date)
	slug := base
	for i := 1; ; i++ {
		taken, err := events.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
		suffix := "-" + strconv.Itoa(i)
		trimmed := base
		if len(trimmed)+len(suffix) > event.MaxSlugLength {
			trimmed = strings.TrimRight(trimmed[:event.MaxSlugLength-len(suffix)], "-")
		}
		slug = trimmed + suffix
	}
}
