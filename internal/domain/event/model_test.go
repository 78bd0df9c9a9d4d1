package event_test

import (
	"strings"
	"testing"
	"time"

	"studio/internal/domain/event"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func validEvent() event.Event {
	e := event.New("e1", "Pole Level 1", event.TypeRegularSession, now.Add(48*time.Hour))
	e.Cost = 900
	return e
}

// TestNew_Defaults tests the defaults applied to new events.
func TestNew_Defaults(t *testing.T) {
	e := event.New("e1", "Hoop", event.TypeWorkshop, now)
	if e.MaxParticipants != 12 {
		t.Errorf("MaxParticipants = %d, want 12", e.MaxParticipants)
	}
	if e.CancellationPeriod != 24 {
		t.Errorf("CancellationPeriod = %d, want 24", e.CancellationPeriod)
	}
	if !e.AllowBookingCancellation || !e.EmailStudioWhenBooked {
		t.Error("expected cancellation allowed and studio emails on by default")
	}
	if e.CancellationFee != 0 {
		t.Errorf("CancellationFee = %d, want 0", e.CancellationFee)
	}
}

// TestEvent_Validate tests validation of Event.
func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *event.Event)
		wantErr error
	}{
		{"valid", func(e *event.Event) {}, nil},
		{"empty name", func(e *event.Event) { e.Name = "  " }, event.ErrEmptyName},
		{"bad type", func(e *event.Event) { e.EventType = "party" }, event.ErrInvalidType},
		{"no date", func(e *event.Event) { e.Date = time.Time{} }, event.ErrEmptyDate},
		{"zero capacity", func(e *event.Event) { e.MaxParticipants = 0 }, event.ErrInvalidCapacity},
		{"negative cost", func(e *event.Event) { e.Cost = -1 }, event.ErrNegativeCost},
		{"negative fee", func(e *event.Event) { e.CancellationFee = -1 }, event.ErrNegativeFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(&e)
			if err := e.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestEvent_SpacesLeft tests capacity arithmetic.
func TestEvent_SpacesLeft(t *testing.T) {
	e := validEvent()
	e.MaxParticipants = 3
	tests := []struct {
		open     int
		want     int
		bookable bool
	}{
		{0, 3, true},
		{2, 1, true},
		{3, 0, false},
		{4, -1, false},
	}
	for _, tt := range tests {
		if got := e.SpacesLeft(tt.open); got != tt.want {
			t.Errorf("SpacesLeft(%d) = %d, want %d", tt.open, got, tt.want)
		}
		if got := e.Bookable(tt.open); got != tt.bookable {
			t.Errorf("Bookable(%d) = %v, want %v", tt.open, got, tt.bookable)
		}
	}
}

// TestEvent_CanCancel tests the cancellation window.
func TestEvent_CanCancel(t *testing.T) {
	tests := []struct {
		name  string
		until time.Duration
		allow bool
		want  bool
	}{
		{"well outside window", 48 * time.Hour, true, true},
		{"exactly on the period", 24 * time.Hour, true, false},
		{"just outside", 24*time.Hour + time.Minute, true, true},
		{"inside window", 2 * time.Hour, true, false},
		{"cancellation disabled", 48 * time.Hour, false, false},
		{"past event", -time.Hour, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			e.Date = now.Add(tt.until)
			e.AllowBookingCancellation = tt.allow
			if got := e.CanCancel(now); got != tt.want {
				t.Errorf("CanCancel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEvent_Cancel tests cancelling twice.
func TestEvent_Cancel(t *testing.T) {
	e := validEvent()
	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !e.Cancelled {
		t.Error("expected Cancelled=true")
	}
	if err := e.Cancel(); err != event.ErrAlreadyCancelled {
		t.Errorf("second Cancel = %v, want ErrAlreadyCancelled", err)
	}
}

// TestEvent_StringUsesLondonTime tests display in studio local time across BST.
func TestEvent_StringUsesLondonTime(t *testing.T) {
	e := validEvent()
	e.Name = "Hoop"
	e.Date = time.Date(2026, 7, 1, 17, 30, 0, 0, time.UTC)
	if got, want := e.String(), "Hoop - 01 Jul 2026, 18:30"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	e.Date = time.Date(2026, 1, 5, 17, 30, 0, 0, time.UTC)
	if got, want := e.String(), "Hoop - 05 Jan 2026, 17:30"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

// TestEvent_TypeLabel tests the label used in emails.
func TestEvent_TypeLabel(t *testing.T) {
	e := validEvent()
	if e.TypeLabel() != "class" {
		t.Errorf("regular session label = %q", e.TypeLabel())
	}
	e.EventType = event.TypeWorkshop
	if e.TypeLabel() != "workshop" {
		t.Errorf("workshop label = %q", e.TypeLabel())
	}
}

// TestGenerateSlug tests slug generation and truncation.
func TestGenerateSlug(t *testing.T) {
	date := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	got := event.GenerateSlug("Pole Level 1!", date)
	if got != "pole-level-1-2026-03-02-1800" {
		t.Errorf("GenerateSlug = %q", got)
	}
	long := event.GenerateSlug(strings.Repeat("Aerial Hoop ", 10), date)
	if len(long) > event.MaxSlugLength {
		t.Errorf("slug length %d exceeds %d", len(long), event.MaxSlugLength)
	}
	if strings.HasSuffix(long, "-") {
		t.Errorf("slug %q ends with a dash", long)
	}
}

// TestPence tests money formatting and parsing.
func TestPence(t *testing.T) {
	if got := event.FormatPence(750); got != "7.50" {
		t.Errorf("FormatPence(750) = %q", got)
	}
	if got := event.FormatPence(5); got != "0.05" {
		t.Errorf("FormatPence(5) = %q", got)
	}
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"7.50", 750, false},
		{"£7.5", 750, false},
		{"7", 700, false},
		{"", 0, false},
		{"7.505", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := event.ParsePence(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePence(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePence(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
