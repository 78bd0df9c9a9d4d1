package projections

import (
	"context"
	"fmt"
	"slices"
	"time"

	"studio/internal/adapters/storage/event"
	domainEvent "studio/internal/domain/event"
)

// GetEventListQuery carries the public events page filters.
type GetEventListQuery struct {
	EventType string // defaults to regular_session
	Name      string // "" or "all" for every name
	VenueID   string
	UserID    string // empty for anonymous visitors
	Staff     bool   // staff see events hidden from the site
}

// EventListItem is one row on the events page.
type EventListItem struct {
	Event         domainEvent.Event
	SpacesLeft    int
	Full          bool
	Booked        bool
	OnWaitingList bool
	StaffOnly     bool
}

// GetEventListResult carries the query result.
type GetEventListResult struct {
	EventType string
	Events    []EventListItem
	Names     []string // distinct names for the filter dropdown
}

// EventQueryDeps holds dependencies for the event list and detail projections.
type EventQueryDeps struct {
	Events      EventStore
	Bookings    BookingStore
	WaitingList WaitingListStore
	Now         func() time.Time
}

// QueryGetEventList lists upcoming events of one type.
// PRE: none
// POST: events are in date order; hidden events are only included for staff
func QueryGetEventList(ctx context.Context, query GetEventListQuery, deps EventQueryDeps) (GetEventListResult, error) {
	eventType := query.EventType
	if eventType == "" {
		eventType = domainEvent.TypeRegularSession
	}
	events, err := deps.Events.List(ctx, event.ListFilter{
		EventType:      eventType,
		From:           deps.Now(),
		ShowOnSiteOnly: !query.Staff,
	})
	if err != nil {
		return GetEventListResult{}, fmt.Errorf("list events: %w", err)
	}

	booked, waiting, err := userEventSets(ctx, query.UserID, deps)
	if err != nil {
		return GetEventListResult{}, err
	}

	result := GetEventListResult{EventType: eventType}
	for _, ev := range events {
		if !slices.Contains(result.Names, ev.Name) {
			result.Names = append(result.Names, ev.Name)
		}
		if query.Name != "" && query.Name != "all" && ev.Name != query.Name {
			continue
		}
		if query.VenueID != "" && ev.VenueID != query.VenueID {
			continue
		}
		open, err := deps.Bookings.CountOpen(ctx, ev.ID)
		if err != nil {
			return GetEventListResult{}, fmt.Errorf("count bookings for %s: %w", ev.ID, err)
		}
		left := ev.SpacesLeft(open)
		result.Events = append(result.Events, EventListItem{
			Event:         ev,
			SpacesLeft:    left,
			Full:          left <= 0,
			Booked:        booked[ev.ID],
			OnWaitingList: waiting[ev.ID],
			StaffOnly:     !ev.ShowOnSite,
		})
	}
	slices.Sort(result.Names)
	return result, nil
}

// userEventSets returns the ids of events the user holds a place on and is waiting for.
func userEventSets(ctx context.Context, userID string, deps EventQueryDeps) (map[string]bool, map[string]bool, error) {
	booked := make(map[string]bool)
	waiting := make(map[string]bool)
	if userID == "" {
		return booked, waiting, nil
	}
	bookings, err := deps.Bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list bookings for %s: %w", userID, err)
	}
	for _, b := range bookings {
		if b.IsActive() {
			booked[b.EventID] = true
		}
	}
	entries, err := deps.WaitingList.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list waiting list for %s: %w", userID, err)
	}
	for _, w := range entries {
		waiting[w.EventID] = true
	}
	return booked, waiting, nil
}

// GetEventDetailQuery identifies one event page.
type GetEventDetailQuery struct {
	Slug   string
	UserID string
	Staff  bool
}

// GetEventDetailResult carries what the event page needs to pick its booking button.
type GetEventDetailResult struct {
	Event         domainEvent.Event
	Past          bool
	SpacesLeft    int
	Full          bool
	Booked        bool // open, not a no-show
	Cancelled     bool // user had a booking and cancelled it
	NeedsPayment  bool
	OnWaitingList bool
	CanCancel     bool
	BookingID     string
}

// QueryGetEventDetail loads an event by slug.
// PRE: none
// POST: returns domainEvent.ErrNotFound for missing events and, to non-staff, hidden ones
func QueryGetEventDetail(ctx context.Context, query GetEventDetailQuery, deps EventQueryDeps) (GetEventDetailResult, error) {
	ev, err := deps.Events.GetBySlug(ctx, query.Slug)
	if err != nil {
		return GetEventDetailResult{}, err
	}
	if !ev.ShowOnSite && !query.Staff {
		return GetEventDetailResult{}, fmt.Errorf("event %s is hidden: %w", query.Slug, domainEvent.ErrNotFound)
	}
	now := deps.Now()
	open, err := deps.Bookings.CountOpen(ctx, ev.ID)
	if err != nil {
		return GetEventDetailResult{}, fmt.Errorf("count bookings for %s: %w", ev.ID, err)
	}
	res := GetEventDetailResult{
		Event:      ev,
		Past:       ev.IsPast(now),
		SpacesLeft: ev.SpacesLeft(open),
		Full:       !ev.Bookable(open),
		CanCancel:  ev.CanCancel(now),
	}
	if query.UserID == "" {
		return res, nil
	}

	b, found, err := deps.Bookings.GetByUserAndEvent(ctx, query.UserID, ev.ID)
	if err != nil {
		return GetEventDetailResult{}, fmt.Errorf("get booking: %w", err)
	}
	if found {
		res.BookingID = b.ID
		res.Booked = b.IsActive()
		res.Cancelled = !b.IsActive()
		res.NeedsPayment = b.IsActive() && !b.Paid
	}
	_, waiting, err := userEventSets(ctx, query.UserID, deps)
	if err != nil {
		return GetEventDetailResult{}, err
	}
	res.OnWaitingList = waiting[ev.ID]
	return res, nil
}
