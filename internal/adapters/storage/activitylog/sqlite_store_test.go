package activitylog

import (
	"context"
	"testing"
	"time"

	"studio/internal/adapters/storage/storagetest"
	domain "studio/internal/domain/activitylog"
)

// TestSQLiteStore_ListFilters tests search, day and housekeeping filters.
func TestSQLiteStore_ListFilters(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []domain.Entry{
		domain.New("1", "Booking id b1 for event Pole, user ann, has been opened", day),
		domain.New("2", "CRON: booking cleanup run; nothing to delete", day.Add(time.Minute)),
		domain.New("3", "User bea has joined the waiting list for Pole", day.AddDate(0, 0, 1)),
	}
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"newest first", ListFilter{}, []string{"3", "2", "1"}},
		{"search", ListFilter{Search: "waiting list"}, []string{"3"}},
		{"day", ListFilter{Day: day}, []string{"2", "1"}},
		{"hide housekeeping", ListFilter{HideHousekeeping: true}, []string{"3", "1"}},
		{"page", ListFilter{Limit: 1, Offset: 1}, []string{"2"}},
		{"oldest first", ListFilter{Oldest: true, HideHousekeeping: true}, []string{"1", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %v", len(got), tt.want)
			}
			for i, e := range got {
				if e.ID != tt.want[i] {
					t.Errorf("entry %d = %s, want %s", i, e.ID, tt.want[i])
				}
			}
		})
	}

	n, err := store.Count(ctx, ListFilter{HideHousekeeping: true})
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}

	if err := store.DeleteByLog(ctx, "CRON: booking cleanup run; nothing to delete"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(ctx, ListFilter{}); n != 2 {
		t.Errorf("Count after delete = %d, want 2", n)
	}
}
