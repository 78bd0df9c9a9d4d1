package projections

import (
	"context"
	"fmt"
	"time"

	"studio/internal/adapters/storage/account"
	"studio/internal/adapters/storage/event"
	domainAccount "studio/internal/domain/account"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
)

// Register status filters.
const (
	RegisterOpen      = "OPEN"
	RegisterCancelled = "CANCELLED"
	RegisterAll       = "ALL"
)

// RegisterQueryDeps holds dependencies for the register projections.
type RegisterQueryDeps struct {
	Accounts    AccountStore
	Events      EventStore
	Bookings    BookingStore
	WaitingList WaitingListStore
	Now         func() time.Time
}

// RegisterRow is one line of the attendance sheet.
type RegisterRow struct {
	Booking            domainBooking.Booking
	Name               string
	Username           string
	FeeText            string
	HasOutstandingFees bool
}

// GetRegisterResult carries the attendance sheet for one event.
type GetRegisterResult struct {
	Event        domainEvent.Event
	Status       string
	Rows         []RegisterRow
	SpacesLeft   int
	CanAddMore   bool
	WaitingCount int
	// AddableUsers are accounts without an active booking, for the add-booking form.
	AddableUsers []domainAccount.Account
}

// QueryGetRegister builds the register for an event.
// PRE: status is OPEN, CANCELLED or ALL; anything else is treated as OPEN
// POST: rows follow the store's booking order
func QueryGetRegister(ctx context.Context, eventID, status string, deps RegisterQueryDeps) (GetRegisterResult, error) {
	if status != RegisterCancelled && status != RegisterAll {
		status = RegisterOpen
	}
	ev, err := deps.Events.GetByID(ctx, eventID)
	if err != nil {
		return GetRegisterResult{}, err
	}
	filter := status
	if status == RegisterAll {
		filter = ""
	}
	bookings, err := deps.Bookings.ListByEvent(ctx, ev.ID, filter)
	if err != nil {
		return GetRegisterResult{}, fmt.Errorf("list bookings for %s: %w", ev.ID, err)
	}

	res := GetRegisterResult{Event: ev, Status: status}
	active := make(map[string]bool)
	owing := make(map[string]bool)
	for _, b := range bookings {
		user, err := deps.Accounts.GetByID(ctx, b.UserID)
		if err != nil {
			return GetRegisterResult{}, fmt.Errorf("get account %s: %w", b.UserID, err)
		}
		if _, seen := owing[user.ID]; !seen {
			owing[user.ID], err = userOwesFees(ctx, deps.Bookings, user.ID)
			if err != nil {
				return GetRegisterResult{}, err
			}
		}
		if b.IsActive() {
			active[user.ID] = true
		}
		res.Rows = append(res.Rows, RegisterRow{
			Booking:            b,
			Name:               user.DisplayName(),
			Username:           user.Username,
			FeeText:            b.FeeText(ev),
			HasOutstandingFees: owing[user.ID],
		})
	}

	open, err := deps.Bookings.CountOpen(ctx, ev.ID)
	if err != nil {
		return GetRegisterResult{}, fmt.Errorf("count bookings for %s: %w", ev.ID, err)
	}
	res.SpacesLeft = ev.SpacesLeft(open)
	res.CanAddMore = res.SpacesLeft > 0

	waiting, err := deps.WaitingList.ListByEvent(ctx, ev.ID)
	if err != nil {
		return GetRegisterResult{}, fmt.Errorf("list waiting list for %s: %w", ev.ID, err)
	}
	res.WaitingCount = len(waiting)

	if res.CanAddMore {
		if status != RegisterOpen {
			all, err := deps.Bookings.ListByEvent(ctx, ev.ID, RegisterOpen)
			if err != nil {
				return GetRegisterResult{}, fmt.Errorf("list open bookings for %s: %w", ev.ID, err)
			}
			active = make(map[string]bool, len(all))
			for _, b := range all {
				if b.IsActive() {
					active[b.UserID] = true
				}
			}
		}
		users, err := deps.Accounts.List(ctx, account.ListFilter{})
		if err != nil {
			return GetRegisterResult{}, fmt.Errorf("list accounts: %w", err)
		}
		for _, u := range users {
			if !active[u.ID] {
				res.AddableUsers = append(res.AddableUsers, u)
			}
		}
	}
	return res, nil
}

func userOwesFees(ctx context.Context, bookings BookingStore, userID string) (bool, error) {
	fees, err := bookings.ListFeesForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list fees for %s: %w", userID, err)
	}
	for _, b := range fees {
		if b.HasOutstandingFee() {
			return true, nil
		}
	}
	return false, nil
}

// RegisterListItem is one event on the registers index.
type RegisterListItem struct {
	Event        domainEvent.Event
	OpenBookings int
	SpacesLeft   int
}

// QueryGetRegisterList lists events of one type for the registers index.
// PRE: none
// POST: covers today (London) through the next 7 days, or every future event when showAll is set
func QueryGetRegisterList(ctx context.Context, eventType string, showAll bool, deps RegisterQueryDeps) ([]RegisterListItem, error) {
	if eventType == "" {
		eventType = domainEvent.TypeRegularSession
	}
	local := deps.Now().In(domainEvent.London)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, domainEvent.London)
	filter := event.ListFilter{EventType: eventType, From: today.UTC()}
	if !showAll {
		filter.To = today.AddDate(0, 0, 8).UTC()
	}
	events, err := deps.Events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	items := make([]RegisterListItem, 0, len(events))
	for _, ev := range events {
		open, err := deps.Bookings.CountOpen(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("count bookings for %s: %w", ev.ID, err)
		}
		items = append(items, RegisterListItem{Event: ev, OpenBookings: open, SpacesLeft: ev.SpacesLeft(open)})
	}
	return items, nil
}

// WaitingListRow is one user waiting for a place.
type WaitingListRow struct {
	EntryID    string
	UserID     string
	Name       string
	Email      string
	DateJoined time.Time
}

// QueryGetWaitingList lists the users waiting for an event, earliest first.
func QueryGetWaitingList(ctx context.Context, eventID string, deps RegisterQueryDeps) (domainEvent.Event, []WaitingListRow, error) {
	ev, err := deps.Events.GetByID(ctx, eventID)
	if err != nil {
		return domainEvent.Event{}, nil, err
	}
	entries, err := deps.WaitingList.ListByEvent(ctx, ev.ID)
	if err != nil {
		return domainEvent.Event{}, nil, fmt.Errorf("list waiting list for %s: %w", ev.ID, err)
	}
	rows := make([]WaitingListRow, 0, len(entries))
	for _, w := range entries {
		user, err := deps.Accounts.GetByID(ctx, w.UserID)
		if err != nil {
			return domainEvent.Event{}, nil, fmt.Errorf("get account %s: %w", w.UserID, err)
		}
		rows = append(rows, WaitingListRow{
			EntryID:    w.ID,
			UserID:     user.ID,
			Name:       user.DisplayName(),
			Email:      user.Email,
			DateJoined: w.DateJoined,
		})
	}
	return ev, rows, nil
}
