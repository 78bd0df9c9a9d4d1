package timetable

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/domain/event"
)

// Session day constants, sortable by weekday.
const (
	Monday    = "01MO"
	Tuesday   = "02TU"
	Wednesday = "03WE"
	Thursday  = "04TH"
	Friday    = "05FR"
	Saturday  = "06SA"
	Sunday    = "07SU"
)

// ValidDays contains all valid day values in week order.
var ValidDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DayNames maps day codes to display names.
var DayNames = map[string]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
	Sunday:    "Sunday",
}

// DefaultLevel is used when a session has no level set.
const DefaultLevel = "All levels"

// Domain errors
var (
	ErrEmptyName          = errors.New("session name cannot be empty")
	ErrInvalidDay         = errors.New("day must be a valid day of the week")
	ErrEmptyStartTime     = errors.New("start time cannot be empty")
	ErrEmptyEndTime       = errors.New("end time cannot be empty")
	ErrEmptySessionType   = errors.New("session type is required")
	ErrEmptyVenue         = errors.New("venue is required")
	ErrInvalidCapacity    = errors.New("max participants must be at least 1")
	ErrEmptyVenueName     = errors.New("venue name cannot be empty")
	ErrEmptyTypeName      = errors.New("session type name cannot be empty")
	ErrInvalidUploadRange = errors.New("end date must not be before start date")
)

// Venue is a place where sessions are held.
type Venue struct {
	ID           string
	Name         string
	Abbreviation string
	Address      string
}

// Validate checks if the Venue has valid data.
func (v *Venue) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrEmptyVenueName
	}
	return nil
}

// SessionType categorises sessions (e.g. "Pole", "Aerial hoop", "Private lesson").
type SessionType struct {
	ID          string
	Name        string
	Description string
}

// Validate checks if the SessionType has valid data.
func (s *SessionType) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyTypeName
	}
	return nil
}

// IsPrivate returns true for private lesson types.
func (s SessionType) IsPrivate() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s.Name)), "private")
}

// Session is a recurring weekly slot that events are generated from.
type Session struct {
	ID                  string
	Name                string
	Level               string
	Day                 string // 01MO .. 07SU
	StartTime           string // HH:MM
	EndTime             string // HH:MM
	SessionTypeID       string
	VenueID             string
	Cost                int64 // pence, non-members
	AltCost             int64 // pence, members
	MaxParticipants     int
	CancellationFee     int64 // pence
	CancellationPeriod  int   // hours
	MembersOnly         bool
	ShowOnTimetablePage bool
}

// Validate checks if the Session has valid data.
// PRE: Session struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if !isValidDay(s.Day) {
		return ErrInvalidDay
	}
	if strings.TrimSpace(s.StartTime) == "" {
		return ErrEmptyStartTime
	}
	if strings.TrimSpace(s.EndTime) == "" {
		return ErrEmptyEndTime
	}
	if _, err := time.Parse("15:04", s.StartTime); err != nil {
		return fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	if strings.TrimSpace(s.SessionTypeID) == "" {
		return ErrEmptySessionType
	}
	if strings.TrimSpace(s.VenueID) == "" {
		return ErrEmptyVenue
	}
	if s.MaxParticipants < 1 {
		return ErrInvalidCapacity
	}
	return nil
}

// ApplyTypeRules hides private sessions from the public timetable.
// POST: ShowOnTimetablePage=false if the session type is private
func (s *Session) ApplyTypeRules(st SessionType) {
	if s.ShowOnTimetablePage && st.IsPrivate() {
		s.ShowOnTimetablePage = false
	}
}

// DurationHours returns the session duration in hours.
// PRE: StartTime and EndTime are in HH:MM format
// POST: Returns duration as float64 hours, or error if times can't be parsed
func (s *Session) DurationHours() (float64, error) {
	start, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return 0, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	end, err := time.Parse("15:04", s.EndTime)
	if err != nil {
		return 0, fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}
	dur := end.Sub(start)
	if dur <= 0 {
		dur += 24 * time.Hour
	}
	return dur.Hours(), nil
}

// EventName is the name given to events generated from this session: "name (level)".
func (s Session) EventName() string {
	level := s.Level
	if strings.TrimSpace(level) == "" {
		level = DefaultLevel
	}
	return fmt.Sprintf("%s (%s)", s.Name, level)
}

// EventTypeFor returns the event type for events generated under the given session type.
func EventTypeFor(st SessionType) string {
	if st.IsPrivate() {
		return event.TypePrivate
	}
	return event.TypeRegularSession
}

// StartOn returns the session start on the given calendar date, in London time, converted to UTC.
// PRE: StartTime is HH:MM
func (s Session) StartOn(date time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	local := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, event.London)
	return local.UTC(), nil
}

// String renders "name (level), Monday 18:00".
func (s Session) String() string {
	return fmt.Sprintf("%s, %s %s", s.EventName(), DayNames[s.Day], s.StartTime)
}

// DayFor maps a Go weekday to the session day code.
func DayFor(wd time.Weekday) string {
	// time.Sunday == 0
	if wd == time.Sunday {
		return Sunday
	}
	return ValidDays[int(wd)-1]
}

func isValidDay(day string) bool {
	for _, d := range ValidDays {
		if d == day {
			return true
		}
	}
	return false
}
