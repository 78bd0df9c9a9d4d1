package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/booking"
	"studio/internal/domain/event"
	"studio/internal/domain/waitinglist"
)

// ToggleWaitingListInput carries input for the ToggleWaitingList orchestrator.
type ToggleWaitingListInput struct {
	UserID  string
	EventID string
}

// ExecuteToggleWaitingList adds the user to the event's waiting list, or removes them.
// Returns true when the user is now on the list.
// INVARIANT: users with outstanding cancellation fees cannot join or leave
func ExecuteToggleWaitingList(ctx context.Context, input ToggleWaitingListInput, deps BookingDeps) (bool, error) {
	user, err := deps.Accounts.GetByID(ctx, input.UserID)
	if err != nil {
		return false, fmt.Errorf("get account: %w", err)
	}
	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return false, fmt.Errorf("get event: %w", err)
	}
	owing, err := hasOutstandingFees(ctx, deps.Bookings, user.ID)
	if err != nil {
		return false, err
	}
	if owing {
		return false, ErrOutstandingFees
	}

	onList, err := deps.WaitingList.Exists(ctx, user.ID, ev.ID)
	if err != nil {
		return false, fmt.Errorf("check waiting list: %w", err)
	}

	action := "left"
	if onList {
		if err := deps.WaitingList.Remove(ctx, user.ID, ev.ID); err != nil {
			return false, fmt.Errorf("leave waiting list: %w", err)
		}
	} else {
		w := waitinglist.WaitingListUser{
			ID:         deps.GenerateID(),
			UserID:     user.ID,
			EventID:    ev.ID,
			DateJoined: deps.Now(),
		}
		if err := deps.WaitingList.Add(ctx, w); err != nil {
			return false, fmt.Errorf("join waiting list: %w", err)
		}
		action = "joined"
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"User %s has %s the waiting list for %s", userLabel(user), action, ev)
	slog.Info("booking_event", "event", "waiting_list_"+action, "event_id", ev.ID, "user_id", user.ID)
	return !onList, nil
}

// RemoveFromWaitingListInput carries input for the admin removal.
type RemoveFromWaitingListInput struct {
	UserID  string
	EventID string
}

// ExecuteRemoveFromWaitingList removes a user from an event's waiting list on behalf of staff.
func ExecuteRemoveFromWaitingList(ctx context.Context, input RemoveFromWaitingListInput, deps BookingDeps) error {
	user, err := deps.Accounts.GetByID(ctx, input.UserID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if err := deps.WaitingList.Remove(ctx, user.ID, ev.ID); err != nil {
		return fmt.Errorf("remove from waiting list: %w", err)
	}
	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"User %s removed from waiting list for %s", userLabel(user), ev)
	slog.Info("booking_event", "event", "waiting_list_removed", "event_id", ev.ID, "user_id", user.ID)
	return nil
}

// NotifyWaitingListInput carries input for NotifyWaitingList.
type NotifyWaitingListInput struct {
	EventID string
}

// NotifyWaitingListResult reports who was auto-booked and who was emailed.
type NotifyWaitingListResult struct {
	AutoBooked string // user id, empty when nobody was auto-booked
	Emailed    []string
}

// ExecuteNotifyWaitingList runs after a place frees up on an event.
// Configured autobook users on the waiting list are booked in directly, first match only;
// then, if places are still left, everyone remaining on the list is emailed.
func ExecuteNotifyWaitingList(ctx context.Context, input NotifyWaitingListInput, deps BookingDeps) (NotifyWaitingListResult, error) {
	var res NotifyWaitingListResult

	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return res, fmt.Errorf("get event: %w", err)
	}
	if ev.Cancelled {
		return res, nil
	}
	waiting, err := deps.WaitingList.ListByEvent(ctx, ev.ID)
	if err != nil {
		return res, fmt.Errorf("list waiting list: %w", err)
	}
	if len(waiting) == 0 {
		return res, nil
	}

	users := make([]domainAccount.Account, 0, len(waiting))
	for _, w := range waiting {
		u, err := deps.Accounts.GetByID(ctx, w.UserID)
		if err != nil {
			slog.Warn("waiting_list_user_missing", "user_id", w.UserID, "event_id", ev.ID, "error", err)
			continue
		}
		users = append(users, u)
	}

	booked, err := autoBook(ctx, ev, users, deps)
	if err != nil {
		return res, err
	}
	if booked != "" {
		res.AutoBooked = booked
		remaining := users[:0]
		for _, u := range users {
			if u.ID != booked {
				remaining = append(remaining, u)
			}
		}
		users = remaining
	}

	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return res, err
	}
	if left <= 0 || len(users) == 0 {
		return res, nil
	}

	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	deps.Mailer.Send(ctx, Mail{
		Template: "waiting_list",
		Bcc:      emails,
		Data:     map[string]any{"Event": ev.String(), "Slug": ev.Slug},
	})
	res.Emailed = emails

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"Waiting list email sent to user(s) %s for event %s", strings.Join(emails, ", "), ev)
	slog.Info("booking_event", "event", "waiting_list_emailed", "event_id", ev.ID, "count", len(emails))
	return res, nil
}

// autoBook books the first configured autobook user found on the waiting list.
// Users whose booking is already open are taken off the list and skipped.
func autoBook(ctx context.Context, ev event.Event, users []domainAccount.Account, deps BookingDeps) (string, error) {
	for _, addr := range deps.Studio.AutoBookEmails {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		var user domainAccount.Account
		found := false
		for _, u := range users {
			if strings.EqualFold(u.Email, addr) {
				user, found = u, true
				break
			}
		}
		if !found {
			continue
		}

		if err := deps.WaitingList.Remove(ctx, user.ID, ev.ID); err != nil {
			return "", fmt.Errorf("remove autobook user from waiting list: %w", err)
		}

		now := deps.Now()
		b, exists, err := deps.Bookings.GetByUserAndEvent(ctx, user.ID, ev.ID)
		if err != nil {
			return "", fmt.Errorf("get booking: %w", err)
		}
		if exists && b.IsActive() {
			continue
		}
		action := "created"
		if exists {
			if err := b.Reopen(now); err != nil {
				return "", err
			}
			action = "reopened"
		} else {
			b = booking.New(deps.GenerateID(), user.ID, ev.ID, now)
		}
		if ev.Cost == 0 {
			b.Paid = true
		}
		if err := deps.Bookings.Save(ctx, b); err != nil {
			if errors.Is(err, booking.ErrEventFull) {
				return "", nil
			}
			return "", fmt.Errorf("save autobook booking: %w", err)
		}

		recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
			"Booking %s %s for %s from waiting list; user %s autobooked", b.ID, action, ev, userLabel(user))
		slog.Info("booking_event", "event", "booking_autobooked", "booking_id", b.ID, "event_id", ev.ID, "user_id", user.ID)

		deps.Mailer.Send(ctx, Mail{
			Template: "autobook",
			To:       []string{user.Email},
			Data: map[string]any{
				"Name":         user.FirstName,
				"Event":        ev.String(),
				"NeedsPayment": !b.Paid,
				"Cost":         ev.Cost,
			},
		})
		return user.ID, nil
	}
	return "", nil
}
