package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"studio/internal/domain/activitylog"
	"studio/internal/domain/booking"
)

const (
	reminderWindow      = 48 * time.Hour
	reminderBookedAfter = 6 * time.Hour
	checkoutGrace       = 5 * time.Minute
)

// cleanupNothingLog is rewritten on every idle cleanup run so it only appears once.
const cleanupNothingLog = activitylog.CronPrefix + " booking cleanup run; nothing to delete"

// DueBookingLister finds bookings the background workers act on.
type DueBookingLister interface {
	ListReminderDue(ctx context.Context, eventsFrom, eventsTo, bookedBefore time.Time) ([]booking.Booking, error)
	ListUnpaidExpired(ctx context.Context, bookedBefore, checkoutBefore time.Time) ([]booking.Booking, error)
}

// ActivityLogCleaner removes activity log entries by text.
type ActivityLogCleaner interface {
	DeleteByLog(ctx context.Context, log string) error
}

// HousekeepingDeps holds dependencies for the reminder and unpaid-booking workers.
type HousekeepingDeps struct {
	BookingDeps
	Due        DueBookingLister
	LogCleaner ActivityLogCleaner
}

// ExecuteSendReminders emails users booked on events in the next 48 hours.
// PRE: none
// POST: each reminded booking has ReminderSent=true; returns the number sent
func ExecuteSendReminders(ctx context.Context, deps HousekeepingDeps) (int, error) {
	now := deps.Now()
	due, err := deps.Due.ListReminderDue(ctx, now, now.Add(reminderWindow), now.Add(-reminderBookedAfter))
	if err != nil {
		return 0, fmt.Errorf("list bookings due a reminder: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var mails []Mail
	var refs []string
	for _, b := range due {
		ev, err := deps.Events.GetByID(ctx, b.EventID)
		if err != nil {
			return len(refs), fmt.Errorf("get event %s: %w", b.EventID, err)
		}
		user, err := deps.Accounts.GetByID(ctx, b.UserID)
		if err != nil {
			return len(refs), fmt.Errorf("get user %s: %w", b.UserID, err)
		}
		b.ReminderSent = true
		if err := deps.Bookings.Save(ctx, b); err != nil {
			return len(refs), fmt.Errorf("save booking %s: %w", b.ID, err)
		}
		mails = append(mails, Mail{
			Template: "reminder",
			To:       []string{user.Email},
			Data: map[string]any{
				"Name":      user.FirstName,
				"Event":     ev.String(),
				"Period":    ev.CancellationPeriod,
				"CanCancel": ev.CanCancel(now),
				"Ref":       b.Reference,
			},
		})
		refs = append(refs, b.Reference)
	}
	deps.Mailer.SendAll(ctx, mails)

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"%s Reminder emails sent for bookings with refs %s", activitylog.CronPrefix, strings.Join(refs, ", "))
	slog.Info("booking_event", "event", "reminders_sent", "count", len(refs))
	return len(refs), nil
}

// ExecuteCancelUnpaidBookings cancels bookings left unpaid past the cart timeout.
// Bookings that entered checkout in the last five minutes are skipped.
// POST: expired bookings are CANCELLED; waiting lists of their events are notified
func ExecuteCancelUnpaidBookings(ctx context.Context, deps HousekeepingDeps) (int, error) {
	now := deps.Now()
	timeout := time.Duration(deps.Studio.CartTimeoutMinutes()) * time.Minute
	expired, err := deps.Due.ListUnpaidExpired(ctx, now.Add(-timeout), now.Add(-checkoutGrace))
	if err != nil {
		return 0, fmt.Errorf("list expired unpaid bookings: %w", err)
	}

	if err := deps.LogCleaner.DeleteByLog(ctx, cleanupNothingLog); err != nil {
		slog.Error("activity_log_cleanup_failed", "error", err)
	}
	if len(expired) == 0 {
		recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now, "%s", cleanupNothingLog)
		return 0, nil
	}

	var events []string
	var descriptions []string
	for _, b := range expired {
		b.Status = booking.StatusCancelled
		if err := deps.Bookings.Save(ctx, b); err != nil {
			return len(descriptions), fmt.Errorf("cancel booking %s: %w", b.ID, err)
		}
		descriptions = append(descriptions, fmt.Sprintf("%s (user %s, event %s)", b.ID, b.UserID, b.EventID))
		if !slices.Contains(events, b.EventID) {
			events = append(events, b.EventID)
		}
		slog.Info("booking_event", "event", "unpaid_booking_cancelled", "booking_id", b.ID, "user_id", b.UserID)
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"%s Unpaid booking(s) cancelled after %d minutes: %s",
		activitylog.CronPrefix, deps.Studio.CartTimeoutMinutes(), strings.Join(descriptions, ", "))

	for _, eventID := range events {
		if _, err := ExecuteNotifyWaitingList(ctx, NotifyWaitingListInput{EventID: eventID}, deps.BookingDeps); err != nil {
			slog.Error("waiting_list_notify_failed", "event_id", eventID, "error", err)
		}
	}
	return len(descriptions), nil
}
