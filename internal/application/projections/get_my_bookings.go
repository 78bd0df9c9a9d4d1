package projections

import (
	"context"
	"fmt"
	"time"

	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
)

// MyBookingRow is one booking on the user's bookings page.
type MyBookingRow struct {
	Booking      domainBooking.Booking
	Event        domainEvent.Event
	Active       bool
	NeedsPayment bool
	CanCancel    bool
	// Rebookable is set for cancelled bookings whose event still has space.
	Rebookable bool
	FeeText    string
}

// GetMyBookingsResult splits the user's bookings around now.
type GetMyBookingsResult struct {
	Upcoming      []MyBookingRow
	Past          []MyBookingRow
	UnpaidCount   int
	HasFeesOwing  bool
	FeesOwingText string
}

// GetMyBookingsDeps holds dependencies for GetMyBookings.
type GetMyBookingsDeps struct {
	Events   EventStore
	Bookings BookingStore
	Now      func() time.Time
}

// QueryGetMyBookings lists a user's bookings.
// PRE: userID is non-empty
// POST: Upcoming is in date order; Past is most recent first
func QueryGetMyBookings(ctx context.Context, userID string, deps GetMyBookingsDeps) (GetMyBookingsResult, error) {
	bookings, err := deps.Bookings.ListByUser(ctx, userID)
	if err != nil {
		return GetMyBookingsResult{}, fmt.Errorf("list bookings for %s: %w", userID, err)
	}
	now := deps.Now()

	var res GetMyBookingsResult
	var owing int64
	for _, b := range bookings {
		ev, err := deps.Events.GetByID(ctx, b.EventID)
		if err != nil {
			return GetMyBookingsResult{}, fmt.Errorf("get event %s: %w", b.EventID, err)
		}
		row := MyBookingRow{
			Booking:      b,
			Event:        ev,
			Active:       b.IsActive(),
			NeedsPayment: b.IsActive() && !b.Paid && ev.Cost > 0,
			CanCancel:    b.IsActive() && ev.CanCancel(now),
			FeeText:      b.FeeText(ev),
		}
		if b.HasOutstandingFee() {
			owing += ev.CancellationFee
		}
		if ev.IsPast(now) {
			res.Past = append([]MyBookingRow{row}, res.Past...)
			continue
		}
		if !row.Active && !ev.Cancelled {
			open, err := deps.Bookings.CountOpen(ctx, ev.ID)
			if err != nil {
				return GetMyBookingsResult{}, fmt.Errorf("count bookings for %s: %w", ev.ID, err)
			}
			row.Rebookable = ev.Bookable(open)
		}
		if row.NeedsPayment {
			res.UnpaidCount++
		}
		res.Upcoming = append(res.Upcoming, row)
	}
	res.HasFeesOwing = owing > 0
	res.FeesOwingText = "£" + domainEvent.FormatPence(owing)
	return res, nil
}
