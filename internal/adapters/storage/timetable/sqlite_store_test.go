package timetable

import (
	"context"
	"testing"

	"studio/internal/adapters/storage/storagetest"
	domain "studio/internal/domain/timetable"
)

// TestSQLiteStore_Sessions tests session persistence and week ordering.
func TestSQLiteStore_Sessions(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()

	if err := store.SaveVenue(ctx, domain.Venue{ID: "v1", Name: "Main studio"}); err != nil {
		t.Fatalf("SaveVenue: %v", err)
	}
	if err := store.SaveSessionType(ctx, domain.SessionType{ID: "st1", Name: "Pole"}); err != nil {
		t.Fatalf("SaveSessionType: %v", err)
	}

	sessions := []domain.Session{
		{ID: "s1", Name: "Pole", Level: "Level 2", Day: domain.Wednesday, StartTime: "19:00", EndTime: "20:00",
			SessionTypeID: "st1", VenueID: "v1", Cost: 1200, MaxParticipants: 10, ShowOnTimetablePage: true},
		{ID: "s2", Name: "Pole", Level: "Level 1", Day: domain.Monday, StartTime: "18:00", EndTime: "19:00",
			SessionTypeID: "st1", VenueID: "v1", Cost: 1200, MaxParticipants: 10, ShowOnTimetablePage: true},
		{ID: "s3", Name: "Private", Day: domain.Monday, StartTime: "10:00", EndTime: "11:00",
			SessionTypeID: "st1", VenueID: "v1", Cost: 4000, MaxParticipants: 1},
	}
	for _, sess := range sessions {
		if err := store.SaveSession(ctx, sess); err != nil {
			t.Fatalf("SaveSession %s: %v", sess.ID, err)
		}
	}

	all, err := store.ListSessions(ctx, false)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	want := []string{"s3", "s2", "s1"}
	if len(all) != len(want) {
		t.Fatalf("got %d sessions, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, all[i].ID, id)
		}
	}

	public, _ := store.ListSessions(ctx, true)
	if len(public) != 2 {
		t.Errorf("public sessions = %d, want 2", len(public))
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Level != "Level 2" || got.Cost != 1200 || !got.ShowOnTimetablePage {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
