package projections

import (
	"context"
	"fmt"

	domainEvent "studio/internal/domain/event"
	domainTimetable "studio/internal/domain/timetable"
)

// TimetableSession is one weekly slot on the public timetable.
type TimetableSession struct {
	Session  domainTimetable.Session
	Venue    string
	CostText string
}

// TimetableDay groups the sessions held on one weekday.
type TimetableDay struct {
	Day      string // 01MO .. 07SU
	Name     string
	Sessions []TimetableSession
}

// QueryGetTimetable groups sessions by day in week order.
// publicOnly drops sessions hidden from the timetable page.
// POST: days without sessions are omitted
func QueryGetTimetable(ctx context.Context, publicOnly bool, store TimetableStore) ([]TimetableDay, error) {
	sessions, err := store.ListSessions(ctx, publicOnly)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	venues, err := store.ListVenues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	venueNames := make(map[string]string, len(venues))
	for _, v := range venues {
		venueNames[v.ID] = v.Name
	}

	byDay := make(map[string][]TimetableSession)
	for _, s := range sessions {
		byDay[s.Day] = append(byDay[s.Day], TimetableSession{
			Session:  s,
			Venue:    venueNames[s.VenueID],
			CostText: "£" + domainEvent.FormatPence(s.Cost),
		})
	}

	var days []TimetableDay
	for _, day := range domainTimetable.ValidDays {
		if len(byDay[day]) == 0 {
			continue
		}
		days = append(days, TimetableDay{Day: day, Name: domainTimetable.DayNames[day], Sessions: byDay[day]})
	}
	return days, nil
}
