package projections

import (
	"context"
	"fmt"
	"slices"
	"strings"

	domainAccount "studio/internal/domain/account"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
)

// FeesQueryDeps holds dependencies for the cancellation fee projections.
type FeesQueryDeps struct {
	Accounts AccountStore
	Events   EventStore
	Bookings BookingStore
}

// UserFeesSummary is one user on the outstanding fees page.
type UserFeesSummary struct {
	User      domainAccount.Account
	Count     int
	Total     int64 // pence
	TotalText string
}

// QueryGetOutstandingFees lists users with incurred, unpaid cancellation fees.
// POST: users are sorted by display name
func QueryGetOutstandingFees(ctx context.Context, deps FeesQueryDeps) ([]UserFeesSummary, error) {
	bookings, err := deps.Bookings.ListOutstandingFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outstanding fees: %w", err)
	}
	byUser := make(map[string]*UserFeesSummary)
	events := make(map[string]domainEvent.Event)
	for _, b := range bookings {
		ev, ok := events[b.EventID]
		if !ok {
			ev, err = deps.Events.GetByID(ctx, b.EventID)
			if err != nil {
				return nil, fmt.Errorf("get event %s: %w", b.EventID, err)
			}
			events[ev.ID] = ev
		}
		sum, ok := byUser[b.UserID]
		if !ok {
			user, err := deps.Accounts.GetByID(ctx, b.UserID)
			if err != nil {
				return nil, fmt.Errorf("get account %s: %w", b.UserID, err)
			}
			sum = &UserFeesSummary{User: user}
			byUser[b.UserID] = sum
		}
		sum.Count++
		sum.Total += ev.CancellationFee
	}

	out := make([]UserFeesSummary, 0, len(byUser))
	for _, sum := range byUser {
		sum.TotalText = "£" + domainEvent.FormatPence(sum.Total)
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b UserFeesSummary) int {
		return strings.Compare(strings.ToLower(a.User.DisplayName()), strings.ToLower(b.User.DisplayName()))
	})
	return out, nil
}

// UserFeeRow is one booking on a user's fees page.
type UserFeeRow struct {
	Booking     domainBooking.Booking
	Event       domainEvent.Event
	FeeText     string
	Outstanding bool
}

// GetUserFeesResult carries a user's fee history.
type GetUserFeesResult struct {
	User             domainAccount.Account
	Rows             []UserFeeRow
	OutstandingTotal int64
	OutstandingText  string
}

// QueryGetUserFees lists every booking on which the user has incurred a fee.
func QueryGetUserFees(ctx context.Context, userID string, deps FeesQueryDeps) (GetUserFeesResult, error) {
	user, err := deps.Accounts.GetByID(ctx, userID)
	if err != nil {
		return GetUserFeesResult{}, err
	}
	bookings, err := deps.Bookings.ListFeesForUser(ctx, userID)
	if err != nil {
		return GetUserFeesResult{}, fmt.Errorf("list fees for %s: %w", userID, err)
	}
	res := GetUserFeesResult{User: user}
	for _, b := range bookings {
		ev, err := deps.Events.GetByID(ctx, b.EventID)
		if err != nil {
			return GetUserFeesResult{}, fmt.Errorf("get event %s: %w", b.EventID, err)
		}
		if b.HasOutstandingFee() {
			res.OutstandingTotal += ev.CancellationFee
		}
		res.Rows = append(res.Rows, UserFeeRow{Booking: b, Event: ev, FeeText: b.FeeText(ev), Outstanding: b.HasOutstandingFee()})
	}
	res.OutstandingText = "£" + domainEvent.FormatPence(res.OutstandingTotal)
	return res, nil
}
