package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Event type constants
const (
	TypeWorkshop       = "workshop"
	TypeRegularSession = "regular_session"
	TypePrivate        = "private"
)

// ValidTypes contains all valid event types.
var ValidTypes = []string{TypeWorkshop, TypeRegularSession, TypePrivate}

// Defaults applied to new events.
const (
	DefaultMaxParticipants    = 12
	DefaultCancellationPeriod = 24 // hours
	MaxSlugLength             = 40
)

// Domain errors
var (
	ErrEmptyName          = errors.New("event name cannot be empty")
	ErrInvalidType        = errors.New("event type must be one of: workshop, regular_session, private")
	ErrEmptyDate          = errors.New("event date is required")
	ErrInvalidCapacity    = errors.New("max participants must be at least 1")
	ErrNegativeCost       = errors.New("cost cannot be negative")
	ErrNegativeFee        = errors.New("cancellation fee cannot be negative")
	ErrAlreadyCancelled   = errors.New("event is already cancelled")
	ErrNotFound           = errors.New("event not found")
	ErrCancellationPeriod = errors.New("cancellation period cannot be negative")
)

// London is the studio's local timezone. Event dates are stored in UTC and shown in London time.
var London = mustLoadLocation("Europe/London")

// Event is a bookable class or workshop.
type Event struct {
	ID                       string
	Name                     string
	EventType                string
	Description              string
	Date                     time.Time
	VenueID                  string
	MaxParticipants          int
	Cost                     int64 // pence
	ShowOnSite               bool
	CancellationPeriod       int // hours
	EmailStudioWhenBooked    bool
	Slug                     string
	AllowBookingCancellation bool
	Cancelled                bool
	CancellationFee          int64 // pence
	MembersOnly              bool
}

// New returns an Event with the studio defaults applied.
// POST: MaxParticipants=12, CancellationPeriod=24, booking cancellation allowed, studio emailed
func New(id, name, eventType string, date time.Time) Event {
	return Event{
		ID:                       id,
		Name:                     name,
		EventType:                eventType,
		Date:                     date,
		MaxParticipants:          DefaultMaxParticipants,
		CancellationPeriod:       DefaultCancellationPeriod,
		EmailStudioWhenBooked:    true,
		AllowBookingCancellation: true,
	}
}

// Validate checks if the Event has valid data.
// PRE: Event struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if !isValidType(e.EventType) {
		return ErrInvalidType
	}
	if e.Date.IsZero() {
		return ErrEmptyDate
	}
	if e.MaxParticipants < 1 {
		return ErrInvalidCapacity
	}
	if e.Cost < 0 {
		return ErrNegativeCost
	}
	if e.CancellationFee < 0 {
		return ErrNegativeFee
	}
	if e.CancellationPeriod < 0 {
		return ErrCancellationPeriod
	}
	return nil
}

// SpacesLeft returns the number of places still available.
// openCount is the number of OPEN bookings that are not no-shows.
// INVARIANT: Event fields are not mutated
func (e Event) SpacesLeft(openCount int) int {
	return e.MaxParticipants - openCount
}

// Bookable returns true if at least one place is available.
func (e Event) Bookable(openCount int) bool {
	return e.SpacesLeft(openCount) > 0
}

// HoursUntil returns the (fractional) number of hours from now until the event starts.
func (e Event) HoursUntil(now time.Time) float64 {
	return e.Date.Sub(now).Hours()
}

// CanCancel reports whether a booking can still be cancelled without penalty.
// True when cancellation is allowed and more than CancellationPeriod hours remain.
// INVARIANT: Event fields are not mutated
func (e Event) CanCancel(now time.Time) bool {
	return e.AllowBookingCancellation && e.HoursUntil(now) > float64(e.CancellationPeriod)
}

// IsPast returns true if the event has already started.
func (e Event) IsPast(now time.Time) bool {
	return !e.Date.After(now)
}

// HasCancellationFee returns true if late cancellation or no-show incurs a fee.
func (e Event) HasCancellationFee() bool {
	return e.CancellationFee > 0
}

// Cancel marks the event as cancelled and hides it from booking.
// PRE: Event is not already cancelled
// POST: Cancelled=true
func (e *Event) Cancel() error {
	if e.Cancelled {
		return ErrAlreadyCancelled
	}
	e.Cancelled = true
	return nil
}

// TypeLabel returns "workshop" for workshops and "class" for everything else.
func (e Event) TypeLabel() string {
	if e.EventType == TypeWorkshop {
		return "workshop"
	}
	return "class"
}

// LocalDate returns the event date in the studio's timezone.
func (e Event) LocalDate() time.Time {
	return e.Date.In(London)
}

// String renders the event as "Name - 02 Jan 2006, 15:04" in London time.
func (e Event) String() string {
	return fmt.Sprintf("%s - %s", e.Name, e.LocalDate().Format("02 Jan 2006, 15:04"))
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug builds a URL slug from the event name and date, truncated to MaxSlugLength.
// Callers append a suffix when the slug is already taken.
func GenerateSlug(name string, date time.Time) string {
	base := strings.ToLower(name + " " + date.In(London).Format("2006-01-02-1504"))
	slug := strings.Trim(nonSlugChars.ReplaceAllString(base, "-"), "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// FormatPence renders a pence amount as pounds, e.g. 750 -> "7.50".
func FormatPence(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// ParsePence parses a pounds string ("7.50", "7", "7.5") into pence.
func ParsePence(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "£"))
	if s == "" {
		return 0, nil
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	pounds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if pounds < 0 || strings.HasPrefix(whole, "-") {
		return 0, ErrNegativeCost
	}
	var pence int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		if len(frac) != 2 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		pence, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || pence < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return pounds*100 + pence, nil
}

func isValidType(t string) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
