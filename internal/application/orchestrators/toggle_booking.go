package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studio/internal/adapters/payments"
	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/booking"
	"studio/internal/domain/event"
	"studio/internal/domain/invoice"
)

// ToggleBookingInput carries input for the ToggleBooking orchestrator.
type ToggleBookingInput struct {
	UserID  string
	EventID string
}

// ToggleBookingResult is returned to the events page.
type ToggleBookingResult struct {
	Booking    booking.Booking
	SpacesLeft int
	Open       bool
}

// ExecuteToggleBooking books the user onto the event, or cancels their open booking.
// PRE: user and event exist
// POST: booking is OPEN (created or reopened) or cancelled under the cancellation rules;
// the user is off the event's waiting list after a booking
// INVARIANT: users with outstanding cancellation fees cannot change bookings
func ExecuteToggleBooking(ctx context.Context, input ToggleBookingInput, deps BookingDeps) (ToggleBookingResult, error) {
	user, err := deps.Accounts.GetByID(ctx, input.UserID)
	if err != nil {
		return ToggleBookingResult{}, fmt.Errorf("get account: %w", err)
	}
	ev, err := deps.Events.GetByID(ctx, input.EventID)
	if err != nil {
		return ToggleBookingResult{}, fmt.Errorf("get event: %w", err)
	}

	owing, err := hasOutstandingFees(ctx, deps.Bookings, user.ID)
	if err != nil {
		return ToggleBookingResult{}, err
	}
	if owing {
		return ToggleBookingResult{}, ErrOutstandingFees
	}

	existing, found, err := deps.Bookings.GetByUserAndEvent(ctx, user.ID, ev.ID)
	if err != nil {
		return ToggleBookingResult{}, fmt.Errorf("get booking: %w", err)
	}

	if found && existing.IsActive() {
		res, err := cancelBooking(ctx, user, ev, existing, deps)
		if err != nil {
			return ToggleBookingResult{}, err
		}
		left, err := spacesLeft(ctx, deps.Bookings, ev)
		if err != nil {
			return ToggleBookingResult{}, err
		}
		return ToggleBookingResult{Booking: res.Booking, SpacesLeft: left, Open: res.Booking.IsActive()}, nil
	}

	b, action, err := openBooking(ctx, user, ev, existing, found, deps)
	if err != nil {
		return ToggleBookingResult{}, err
	}

	if err := deps.WaitingList.Remove(ctx, user.ID, ev.ID); err != nil {
		slog.Error("waiting_list_remove_failed", "user_id", user.ID, "event_id", ev.ID, "error", err)
	}

	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return ToggleBookingResult{}, err
	}

	now := deps.Now()
	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"Booking id %s for event %s, user %s, has been %s", b.ID, ev, userLabel(user), action)
	slog.Info("booking_event", "event", "booking_"+action, "booking_id", b.ID, "event_id", ev.ID, "user_id", user.ID)

	deps.Mailer.Send(ctx, Mail{
		Template: "booking_user",
		To:       []string{user.Email},
		Data: map[string]any{
			"Name":         user.FirstName,
			"Event":        ev.String(),
			"Action":       action,
			"Ref":          b.Reference,
			"NeedsPayment": !b.Paid,
			"Cost":         ev.Cost,
			"CartTimeout":  deps.Studio.CartTimeoutMinutes(),
		},
	})
	notifyStudio(ctx, deps, user, ev, action, left)

	return ToggleBookingResult{Booking: b, SpacesLeft: left, Open: true}, nil
}

// openBooking creates or reopens the user's booking, refusing cancelled and full events.
func openBooking(ctx context.Context, user domainAccount.Account, ev event.Event, existing booking.Booking, found bool, deps BookingDeps) (booking.Booking, string, error) {
	if ev.Cancelled {
		return booking.Booking{}, "", &UserError{Msg: fmt.Sprintf("Sorry, this %s has been cancelled", ev.TypeLabel()), Err: ErrEventCancelled}
	}
	full := &UserError{Msg: fmt.Sprintf("Sorry, this %s is now full", ev.TypeLabel()), Err: booking.ErrEventFull}

	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return booking.Booking{}, "", err
	}
	if left <= 0 {
		return booking.Booking{}, "", full
	}

	now := deps.Now()
	b, action := existing, "reopened"
	if found {
		if err := b.Reopen(now); err != nil {
			return booking.Booking{}, "", err
		}
	} else {
		b = booking.New(deps.GenerateID(), user.ID, ev.ID, now)
		action = "opened"
	}
	if ev.Cost == 0 {
		b.Paid = true
	}

	if err := deps.Bookings.Save(ctx, b); err != nil {
		if errors.Is(err, booking.ErrEventFull) {
			return booking.Booking{}, "", full
		}
		return booking.Booking{}, "", fmt.Errorf("save booking: %w", err)
	}
	return b, action, nil
}

// CancelBookingInput carries input for the user-facing cancel.
type CancelBookingInput struct {
	UserID    string
	BookingID string
}

// CancelBookingResult describes what the cancellation did.
type CancelBookingResult struct {
	Booking    booking.Booking
	Refunded   int64 // pence, 0 when no refund was requested
	LateCancel bool
	FeeCharged bool
}

// ExecuteCancelBooking cancels one of the user's own bookings.
// PRE: booking belongs to the user and is OPEN
// POST: cancelled (refunding Stripe payments) inside the cancellation period;
// outside it, unpaid bookings are cancelled and paid bookings become no-shows.
// A late cancellation incurs the event's fee.
func ExecuteCancelBooking(ctx context.Context, input CancelBookingInput, deps BookingDeps) (CancelBookingResult, error) {
	b, err := deps.Bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return CancelBookingResult{}, fmt.Errorf("get booking: %w", err)
	}
	if b.UserID != input.UserID {
		return CancelBookingResult{}, ErrNotYourBooking
	}
	if !b.IsActive() {
		return CancelBookingResult{}, booking.ErrAlreadyCancelled
	}
	user, err := deps.Accounts.GetByID(ctx, b.UserID)
	if err != nil {
		return CancelBookingResult{}, fmt.Errorf("get account: %w", err)
	}
	ev, err := deps.Events.GetByID(ctx, b.EventID)
	if err != nil {
		return CancelBookingResult{}, fmt.Errorf("get event: %w", err)
	}
	if ev.IsPast(deps.Now()) {
		return CancelBookingResult{}, ErrEventPast
	}
	return cancelBooking(ctx, user, ev, b, deps)
}

func cancelBooking(ctx context.Context, user domainAccount.Account, ev event.Event, b booking.Booking, deps BookingDeps) (CancelBookingResult, error) {
	now := deps.Now()
	res := CancelBookingResult{LateCancel: !ev.CanCancel(now)}

	switch {
	case !res.LateCancel:
		if b.Paid {
			refunded, err := refundBooking(ctx, deps, ev, b)
			if err != nil {
				return CancelBookingResult{}, err
			}
			res.Refunded = refunded
		}
		b.Status = booking.StatusCancelled
		b.Paid = false
	case !b.Paid:
		b.Status = booking.StatusCancelled
	default:
		b.MarkNoShow()
	}
	if res.LateCancel && ev.HasCancellationFee() {
		b.IncurFee()
		res.FeeCharged = true
	}

	if err := deps.Bookings.Save(ctx, b); err != nil {
		return CancelBookingResult{}, fmt.Errorf("save booking: %w", err)
	}
	res.Booking = b

	if _, err := ExecuteNotifyWaitingList(ctx, NotifyWaitingListInput{EventID: ev.ID}, deps); err != nil {
		slog.Error("waiting_list_notify_failed", "event_id", ev.ID, "error", err)
	}

	action := "cancelled"
	if b.Status == booking.StatusOpen {
		action = "cancelled (late cancellation, marked as no-show)"
	}
	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"Booking id %s for event %s, user %s, has been %s", b.ID, ev, userLabel(user), action)
	if res.FeeCharged {
		recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
			"Cancellation fee of £%s incurred for booking %s (user %s)", event.FormatPence(ev.CancellationFee), b.ID, userLabel(user))
	}
	slog.Info("booking_event", "event", "booking_cancelled", "booking_id", b.ID, "event_id", ev.ID,
		"user_id", user.ID, "late", res.LateCancel, "refunded", res.Refunded, "fee", res.FeeCharged)

	data := map[string]any{
		"Name":       user.FirstName,
		"Event":      ev.String(),
		"Refunded":   res.Refunded > 0,
		"Refund":     res.Refunded,
		"LateCancel": res.LateCancel && b.Paid,
		"Period":     ev.CancellationPeriod,
	}
	if res.FeeCharged {
		data["Fee"] = ev.CancellationFee
	}
	deps.Mailer.Send(ctx, Mail{Template: "booking_cancelled", To: []string{user.Email}, Data: data})

	left, err := spacesLeft(ctx, deps.Bookings, ev)
	if err != nil {
		return res, err
	}
	notifyStudio(ctx, deps, user, ev, "cancelled", left)
	return res, nil
}

// refundBooking refunds what the booking was charged when it was paid by card.
// The charged amount comes from the payment intent metadata written at checkout,
// falling back to the event cost.
func refundBooking(ctx context.Context, deps BookingDeps, ev event.Event, b booking.Booking) (int64, error) {
	if b.InvoiceID == "" {
		return 0, nil
	}
	inv, err := deps.Invoices.GetByID(ctx, b.InvoiceID)
	if err != nil {
		return 0, fmt.Errorf("get invoice for refund: %w", err)
	}
	if inv.StripePaymentIntentID == "" {
		return 0, nil
	}
	amount := bookingCharge(ctx, deps.Payments, inv, b.ID, ev.Cost)
	if amount <= 0 {
		return 0, nil
	}
	if _, err := deps.Payments.Refund(ctx, inv.StripePaymentIntentID, amount); err != nil {
		return 0, fmt.Errorf("refund booking %s: %w", b.ID, err)
	}
	return amount, nil
}

func bookingCharge(ctx context.Context, gw Refunder, inv invoice.Invoice, bookingID string, fallback int64) int64 {
	pi, err := gw.GetPaymentIntent(ctx, inv.StripePaymentIntentID)
	if err != nil {
		slog.Warn("payment_intent_lookup_failed", "payment_intent", inv.StripePaymentIntentID, "error", err)
		return fallback
	}
	if charged, ok := pi.ChargedFor(ItemBooking, bookingID); ok {
		return charged
	}
	return fallback
}

func notifyStudio(ctx context.Context, deps BookingDeps, user domainAccount.Account, ev event.Event, action string, left int) {
	if !ev.EmailStudioWhenBooked || deps.Studio.StudioEmail == "" {
		return
	}
	deps.Mailer.Send(ctx, Mail{
		Template: "booking_studio",
		To:       []string{deps.Studio.StudioEmail},
		Data: map[string]any{
			"Action":     action,
			"User":       user.DisplayName(),
			"Email":      user.Email,
			"Event":      ev.String(),
			"SpacesLeft": left,
		},
	})
}
