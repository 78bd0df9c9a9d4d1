package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"studio/internal/domain/event"
	"studio/internal/domain/timetable"
)

// TimetableReader loads the sessions and session types events are generated from.
type TimetableReader interface {
	GetSession(ctx context.Context, id string) (timetable.Session, error)
	GetSessionType(ctx context.Context, id string) (timetable.SessionType, error)
}

// UploadEventStore finds existing events and saves new ones.
type UploadEventStore interface {
	ListMatching(ctx context.Context, name, eventType string, date time.Time, venueID string) ([]event.Event, error)
	Save(ctx context.Context, e event.Event) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// UploadTimetableInput carries the upload form.
type UploadTimetableInput struct {
	Start      time.Time // first date, inclusive
	End        time.Time // last date, inclusive
	SessionIDs []string
	ShowOnSite bool
	AdminID    string
}

// Duplicate is an upload slot already held by more than one event.
type Duplicate struct {
	Event event.Event
	Count int
}

// UploadTimetableResult lists what the upload created and what it found already there.
type UploadTimetableResult struct {
	Created    []event.Event
	Existing   []event.Event
	Duplicates []Duplicate
}

// UploadTimetableDeps holds dependencies for UploadTimetable.
type UploadTimetableDeps struct {
	Timetable   TimetableReader
	Events      UploadEventStore
	Accounts    AccountFinder
	ActivityLog ActivityLogger
	GenerateID  func() string
	Now         func() time.Time
}

// ExecuteUploadTimetable creates events for every selected session on every matching day in the range.
// PRE: Start <= End (calendar dates)
// POST: one event per (date, session) slot; slots that already have an event are reported, not recreated
func ExecuteUploadTimetable(ctx context.Context, input UploadTimetableInput, deps UploadTimetableDeps) (UploadTimetableResult, error) {
	var res UploadTimetableResult

	start := dateOnly(input.Start)
	end := dateOnly(input.End)
	if end.Before(start) {
		return res, &UserError{Msg: timetable.ErrInvalidUploadRange.Error(), Err: timetable.ErrInvalidUploadRange}
	}

	type sessionInfo struct {
		session timetable.Session
		st      timetable.SessionType
	}
	byDay := make(map[string][]sessionInfo)
	for _, id := range input.SessionIDs {
		s, err := deps.Timetable.GetSession(ctx, id)
		if err != nil {
			return res, fmt.Errorf("get session %s: %w", id, err)
		}
		st, err := deps.Timetable.GetSessionType(ctx, s.SessionTypeID)
		if err != nil {
			return res, fmt.Errorf("get session type %s: %w", s.SessionTypeID, err)
		}
		byDay[s.Day] = append(byDay[s.Day], sessionInfo{session: s, st: st})
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, info := range byDay[timetable.DayFor(d.Weekday())] {
			s := info.session
			date, err := s.StartOn(d)
			if err != nil {
				return res, err
			}
			name := s.EventName()
			eventType := timetable.EventTypeFor(info.st)

			matches, err := deps.Events.ListMatching(ctx, name, eventType, date, s.VenueID)
			if err != nil {
				return res, fmt.Errorf("find existing events: %w", err)
			}
			if len(matches) > 0 {
				if len(matches) > 1 {
					res.Duplicates = append(res.Duplicates, Duplicate{Event: matches[0], Count: len(matches)})
				}
				res.Existing = append(res.Existing, matches[0])
				continue
			}

			ev := event.New(deps.GenerateID(), name, eventType, date)
			ev.VenueID = s.VenueID
			ev.MaxParticipants = s.MaxParticipants
			ev.Cost = s.Cost
			ev.ShowOnSite = input.ShowOnSite
			ev.CancellationPeriod = s.CancellationPeriod
			ev.CancellationFee = s.CancellationFee
			ev.MembersOnly = s.MembersOnly
			if ev.Slug, err = uniqueSlug(ctx, deps.Events, name, date); err != nil {
				return res, err
			}
			if err := ev.Validate(); err != nil {
				return res, fmt.Errorf("session %s on %s: %w", s.ID, d.Format(time.DateOnly), err)
			}
			if err := deps.Events.Save(ctx, ev); err != nil {
				return res, fmt.Errorf("save event: %w", err)
			}
			res.Created = append(res.Created, ev)
		}
	}

	slices.SortFunc(res.Created, func(a, b event.Event) int { return a.Date.Compare(b.Date) })

	if len(res.Created) > 0 {
		by := ""
		if input.AdminID != "" {
			if admin, err := deps.Accounts.GetByID(ctx, input.AdminID); err == nil {
				by = " by admin user " + userLabel(admin)
			}
		}
		recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
			"Timetable uploaded for %s to %s%s", start.Format("Mon 02 January 2006"), end.Format("Mon 02 January 2006"), by)
	}
	slog.Info("timetable_event", "event", "timetable_uploaded",
		"created", len(res.Created), "existing", len(res.Existing), "duplicates", len(res.Duplicates))
	return res, nil
}

// dateOnly truncates t to midnight of its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
