package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studio/internal/domain/booking"
	"studio/internal/domain/event"
)

var (
	ErrOpenBookingExists  = errors.New("Open booking for this user already exists")
	ErrInvalidAttendance  = errors.New("No attendance data")
	waitingListNoticeTime = 30 * time.Minute
)

// Attendance values accepted by ToggleAttended.
const (
	AttendanceAttended = "attended"
	AttendanceNoShow   = "no-show"
)

// RegisterAddBookingInput carries input for adding a booking from the register.
type RegisterAddBookingInput struct {
	EventID string
	UserID  string
	AdminID string
}

// ExecuteRegisterAddBooking books a user onto an event from the admin register.
// PRE: caller is staff
// POST: booking is created, or reopened with no_show cleared; user is off the waiting list
func ExecuteRegisterAddBooking(ctx context.Context, input RegisterAddBookingInput, deps BookingDeps) (booking.Booking, error) {
	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get event: %w", err)
	}
	user, err := deps.Accounts.GetByID(ctx, input.UserID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get account: %w", err)
	}
	admin, err := deps.Accounts.GetByID(ctx, input.AdminID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get admin account: %w", err)
	}

	full := &UserError{
		Msg: fmt.Sprintf("%s is now full, cannot reopen booking", capitalise(ev.TypeLabel())),
		Err: booking.ErrEventFull,
	}
	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return booking.Booking{}, err
	}

	existing, found, err := deps.Bookings.GetByUserAndEvent(ctx, user.ID, ev.ID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if found && existing.IsActive() {
		return booking.Booking{}, &UserError{Msg: ErrOpenBookingExists.Error(), Err: ErrOpenBookingExists}
	}
	if left <= 0 {
		return booking.Booking{}, full
	}

	now := deps.Now()
	b, action := existing, "reopened"
	if found {
		if err := b.Reopen(now); err != nil {
			return booking.Booking{}, err
		}
	} else {
		b = booking.New(deps.GenerateID(), user.ID, ev.ID, now)
		action = "created"
	}
	if ev.Cost == 0 {
		b.Paid = true
	}
	if err := deps.Bookings.Save(ctx, b); err != nil {
		if errors.Is(err, booking.ErrEventFull) {
			return booking.Booking{}, full
		}
		return booking.Booking{}, fmt.Errorf("save booking: %w", err)
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"Booking id %s (user %s) for %q %s by admin user %s", b.ID, userLabel(user), ev.String(), action, userLabel(admin))
	slog.Info("booking_event", "event", "register_booking_"+action, "booking_id", b.ID, "event_id", ev.ID, "user_id", user.ID)

	onList, err := deps.WaitingList.Exists(ctx, user.ID, ev.ID)
	if err != nil {
		slog.Error("waiting_list_check_failed", "user_id", user.ID, "event_id", ev.ID, "error", err)
	}
	if onList {
		if err := deps.WaitingList.Remove(ctx, user.ID, ev.ID); err != nil {
			slog.Error("waiting_list_remove_failed", "user_id", user.ID, "event_id", ev.ID, "error", err)
		} else {
			recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
				"User %s has been removed from the waiting list for %s", userLabel(user), ev)
		}
	}
	return b, nil
}

// ToggleAttendedInput carries input for marking attendance on the register.
type ToggleAttendedInput struct {
	BookingID  string
	Attendance string // "attended" or "no-show"
	AdminID    string
}

// ToggleAttendedResult is serialised straight to the register's AJAX response.
type ToggleAttendedResult struct {
	Attended             bool   `json:"attended"`
	UserID               string `json:"user_id"`
	HasOutstandingFees   bool   `json:"user_has_outstanding_fees"`
	OutstandingFeesTotal string `json:"outstanding_fees_total"`
	FeeText              string `json:"this_booking_fee_text"`
	SpacesLeft           string `json:"spaces_left"`
	CanAddMore           bool   `json:"can_add_more"`
	Alert                string `json:"alert_msg,omitempty"`
}

// ExecuteToggleAttended marks a booking attended or no-show.
// Marking a cancelled or no-show booking as attended reopens it unless the event is full,
// in which case the booking is left alone and Alert explains why.
// A no-show on a full event more than 30 minutes out notifies the waiting list.
func ExecuteToggleAttended(ctx context.Context, input ToggleAttendedInput, deps BookingDeps) (ToggleAttendedResult, error) {
	if input.Attendance != AttendanceAttended && input.Attendance != AttendanceNoShow {
		return ToggleAttendedResult{}, ErrInvalidAttendance
	}
	b, err := deps.Bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return ToggleAttendedResult{}, fmt.Errorf("get booking: %w", err)
	}
	ev, err := deps.Events.GetByID(ctx, b.EventID)
	if err != nil {
		return ToggleAttendedResult{}, fmt.Errorf("get event: %w", err)
	}
	user, err := deps.Accounts.GetByID(ctx, b.UserID)
	if err != nil {
		return ToggleAttendedResult{}, fmt.Errorf("get account: %w", err)
	}
	admin, err := deps.Accounts.GetByID(ctx, input.AdminID)
	if err != nil {
		return ToggleAttendedResult{}, fmt.Errorf("get admin account: %w", err)
	}

	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return ToggleAttendedResult{}, err
	}
	wasFull := left <= 0
	now := deps.Now()

	var res ToggleAttendedResult
	changed := true
	switch input.Attendance {
	case AttendanceAttended:
		if !b.IsActive() && wasFull {
			res.Alert = fmt.Sprintf("%s is now full, cannot reopen booking.", capitalise(ev.TypeLabel()))
			changed = false
		} else {
			b.MarkAttended(now)
		}
	case AttendanceNoShow:
		b.MarkNoShow()
	}

	if changed {
		if err := deps.Bookings.Save(ctx, b); err != nil {
			if errors.Is(err, booking.ErrEventFull) {
				return ToggleAttendedResult{}, &UserError{Msg: fmt.Sprintf("%s is now full, cannot reopen booking.", capitalise(ev.TypeLabel())), Err: err}
			}
			return ToggleAttendedResult{}, fmt.Errorf("save booking: %w", err)
		}
		recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
			"User %s marked as %s for %s by admin user %s", userLabel(user), input.Attendance, ev, userLabel(admin))
		slog.Info("booking_event", "event", "attendance_marked", "booking_id", b.ID, "attendance", input.Attendance)
	}

	if changed && wasFull && input.Attendance == AttendanceNoShow && ev.Date.After(now.Add(waitingListNoticeTime)) {
		if _, err := ExecuteNotifyWaitingList(ctx, NotifyWaitingListInput{EventID: ev.ID}, deps); err != nil {
			slog.Error("waiting_list_notify_failed", "event_id", ev.ID, "error", err)
		}
	}

	left, err = spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return ToggleAttendedResult{}, err
	}
	owing, total, err := OutstandingFeesForUser(ctx, deps.Bookings, deps.Events, user.ID)
	if err != nil {
		return ToggleAttendedResult{}, err
	}

	res.Attended = b.Attended
	res.UserID = user.ID
	res.HasOutstandingFees = owing
	res.OutstandingFeesTotal = "£" + event.FormatPence(total)
	res.FeeText = b.FeeText(ev)
	res.SpacesLeft = fmt.Sprintf("%d / %d", left, ev.MaxParticipants)
	res.CanAddMore = left > 0
	return res, nil
}

// OutstandingFeesForUser reports whether the user owes cancellation fees and the total in pence.
func OutstandingFeesForUser(ctx context.Context, bookings interface {
	ListFeesForUser(ctx context.Context, userID string) ([]booking.Booking, error)
}, events EventGetter, userID string) (bool, int64, error) {
	fees, err := bookings.ListFeesForUser(ctx, userID)
	if err != nil {
		return false, 0, fmt.Errorf("list fees for user %s: %w", userID, err)
	}
	var total int64
	owing := false
	for _, b := range fees {
		if !b.HasOutstandingFee() {
			continue
		}
		owing = true
		ev, err := events.GetByID(ctx, b.EventID)
		if err != nil {
			return false, 0, fmt.Errorf("get event %s: %w", b.EventID, err)
		}
		total += ev.CancellationFee
	}
	return owing, total, nil
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
