package projections

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"studio/internal/adapters/storage/account"
	"studio/internal/adapters/storage/activitylog"
	"studio/internal/adapters/storage/event"
	domainAccount "studio/internal/domain/account"
	domainActivity "studio/internal/domain/activitylog"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
	domainGallery "studio/internal/domain/gallery"
	domainTimetable "studio/internal/domain/timetable"
	domainWaiting "studio/internal/domain/waitinglist"
	domainWebsite "studio/internal/domain/website"
)

var testNow = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // a Wednesday

func fixedClock() time.Time { return testNow }

var errMissing = errors.New("missing")

type mockAccounts struct {
	accounts []domainAccount.Account
}

// GetByID returns a seeded account by ID.
// PRE: id is non-empty
// POST: Returns the seeded account or an error
func (m *mockAccounts) GetByID(_ context.Context, id string) (domainAccount.Account, error) {
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domainAccount.Account{}, errMissing
}

func (m *mockAccounts) matching(f account.ListFilter) []domainAccount.Account {
	var out []domainAccount.Account
	for _, a := range m.accounts {
		if f.Initial != "" && a.Initial() != strings.ToUpper(f.Initial) {
			continue
		}
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.DisplayName()+" "+a.Email), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// List returns seeded accounts matching the filter, honouring Limit and Offset.
func (m *mockAccounts) List(_ context.Context, f account.ListFilter) ([]domainAccount.Account, error) {
	out := m.matching(f)
	if f.SortBy == account.SortByEmail {
		slices.SortStableFunc(out, func(a, b domainAccount.Account) int {
			return strings.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email))
		})
	}
	if f.Desc {
		slices.Reverse(out)
	}
	if f.Limit > 0 {
		start := min(f.Offset, len(out))
		end := min(start+f.Limit, len(out))
		out = out[start:end]
	}
	return out, nil
}

func (m *mockAccounts) Count(_ context.Context, f account.ListFilter) (int, error) {
	return len(m.matching(f)), nil
}

func (m *mockAccounts) Initials(_ context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, a := range m.accounts {
		if i := a.Initial(); i != "" {
			out[i] = true
		}
	}
	return out, nil
}

type mockEvents struct {
	events []domainEvent.Event
}

func (m *mockEvents) GetByID(_ context.Context, id string) (domainEvent.Event, error) {
	for _, e := range m.events {
		if e.ID == id {
			return e, nil
		}
	}
	return domainEvent.Event{}, domainEvent.ErrNotFound
}

func (m *mockEvents) GetBySlug(_ context.Context, slug string) (domainEvent.Event, error) {
	for _, e := range m.events {
		if e.Slug == slug {
			return e, nil
		}
	}
	return domainEvent.Event{}, domainEvent.ErrNotFound
}

// List applies the filter the way the sqlite store does, in date order.
// PRE: filter is valid
// POST: Returns matching events sorted by date
func (m *mockEvents) List(_ context.Context, f event.ListFilter) ([]domainEvent.Event, error) {
	var out []domainEvent.Event
	for _, e := range m.events {
		switch {
		case f.EventType != "" && e.EventType != f.EventType:
		case !f.From.IsZero() && e.Date.Before(f.From):
		case !f.To.IsZero() && !e.Date.Before(f.To):
		case f.ShowOnSiteOnly && !e.ShowOnSite:
		case !f.IncludeCancelled && e.Cancelled:
		default:
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domainEvent.Event) int { return a.Date.Compare(b.Date) })
	return out, nil
}

type mockBookings struct {
	bookings []domainBooking.Booking
}

func (m *mockBookings) filter(keep func(domainBooking.Booking) bool) []domainBooking.Booking {
	var out []domainBooking.Booking
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func (m *mockBookings) GetByUserAndEvent(_ context.Context, userID, eventID string) (domainBooking.Booking, bool, error) {
	for _, b := range m.bookings {
		if b.UserID == userID && b.EventID == eventID {
			return b, true, nil
		}
	}
	return domainBooking.Booking{}, false, nil
}

func (m *mockBookings) CountOpen(_ context.Context, eventID string) (int, error) {
	return len(m.filter(func(b domainBooking.Booking) bool { return b.EventID == eventID && b.IsActive() })), nil
}

func (m *mockBookings) ListByEvent(_ context.Context, eventID, status string) ([]domainBooking.Booking, error) {
	return m.filter(func(b domainBooking.Booking) bool {
		return b.EventID == eventID && (status == "" || b.Status == status)
	}), nil
}

func (m *mockBookings) ListByUser(_ context.Context, userID string) ([]domainBooking.Booking, error) {
	return m.filter(func(b domainBooking.Booking) bool { return b.UserID == userID }), nil
}

func (m *mockBookings) ListOutstandingFees(_ context.Context) ([]domainBooking.Booking, error) {
	return m.filter(func(b domainBooking.Booking) bool { return b.HasOutstandingFee() }), nil
}

func (m *mockBookings) ListFeesForUser(_ context.Context, userID string) ([]domainBooking.Booking, error) {
	return m.filter(func(b domainBooking.Booking) bool { return b.UserID == userID && b.CancellationFeeIncurred }), nil
}

type mockWaitingList struct {
	entries []domainWaiting.WaitingListUser
}

func (m *mockWaitingList) ListByEvent(_ context.Context, eventID string) ([]domainWaiting.WaitingListUser, error) {
	var out []domainWaiting.WaitingListUser
	for _, w := range m.entries {
		if w.EventID == eventID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockWaitingList) ListByUser(_ context.Context, userID string) ([]domainWaiting.WaitingListUser, error) {
	var out []domainWaiting.WaitingListUser
	for _, w := range m.entries {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

type mockActivityLog struct {
	entries []domainActivity.Entry // newest first
}

func (m *mockActivityLog) matching(f activitylog.ListFilter) []domainActivity.Entry {
	var out []domainActivity.Entry
	for _, e := range m.entries {
		if f.HideHousekeeping && e.IsHousekeeping() {
			continue
		}
		if f.Search != "" && !strings.Contains(e.Log, f.Search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *mockActivityLog) List(_ context.Context, f activitylog.ListFilter) ([]domainActivity.Entry, error) {
	out := m.matching(f)
	if f.Oldest {
		slices.Reverse(out)
	}
	if f.Limit > 0 {
		start := min(f.Offset, len(out))
		out = out[start:min(start+f.Limit, len(out))]
	}
	return out, nil
}

func (m *mockActivityLog) Count(_ context.Context, f activitylog.ListFilter) (int, error) {
	return len(m.matching(f)), nil
}

type mockTimetable struct {
	sessions []domainTimetable.Session
	venues   []domainTimetable.Venue
}

func (m *mockTimetable) ListSessions(_ context.Context, publicOnly bool) ([]domainTimetable.Session, error) {
	var out []domainTimetable.Session
	for _, s := range m.sessions {
		if publicOnly && !s.ShowOnTimetablePage {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockTimetable) ListVenues(_ context.Context) ([]domainTimetable.Venue, error) {
	return m.venues, nil
}

type mockGallery struct {
	categories []domainGallery.Category
	images     []domainGallery.Image
}

func (m *mockGallery) ListCategories(_ context.Context) ([]domainGallery.Category, error) {
	return m.categories, nil
}

func (m *mockGallery) ListImages(_ context.Context, categoryID string) ([]domainGallery.Image, error) {
	var out []domainGallery.Image
	for _, img := range m.images {
		if categoryID == domainGallery.AllCategories || img.CategoryID == categoryID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *mockGallery) CountImages(_ context.Context) (int, error) {
	return len(m.images), nil
}

type mockWebsite struct {
	pages []domainWebsite.Page
	about []domainWebsite.AboutInfo
}

func (m *mockWebsite) GetPageByName(_ context.Context, name string) (domainWebsite.Page, error) {
	for _, p := range m.pages {
		if p.Name == name {
			return p, nil
		}
	}
	return domainWebsite.Page{}, errMissing
}

func (m *mockWebsite) ListPages(_ context.Context, menuOnly bool) ([]domainWebsite.Page, error) {
	var out []domainWebsite.Page
	for _, p := range m.pages {
		if menuOnly && !(p.Active && p.DisplayInMenu) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domainWebsite.Page) int { return a.MenuOrder - b.MenuOrder })
	return out, nil
}

func (m *mockWebsite) ListAbout(_ context.Context) ([]domainWebsite.AboutInfo, error) {
	return m.about, nil
}

func studioEvent(id, name, eventType string, at time.Time) domainEvent.Event {
	ev := domainEvent.New(id, name, eventType, at)
	ev.Slug = id
	ev.ShowOnSite = true
	ev.MaxParticipants = 2
	ev.Cost = 1000
	ev.CancellationFee = 500
	return ev
}

func openBooking(id, userID, eventID string) domainBooking.Booking {
	return domainBooking.Booking{ID: id, UserID: userID, EventID: eventID, Status: domainBooking.StatusOpen, DateBooked: testNow.Add(-time.Hour)}
}
