package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"studio/internal/adapters/storage/storagetest"
	domain "studio/internal/domain/account"
)

func seedAccounts(t *testing.T, store *SQLiteStore) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"ann", "Amy", "bea", "Cat"} {
		a := domain.Account{
			ID: string(rune('a' + i)), Email: name + "@studio.test", FirstName: name,
			Role: domain.RoleStudent, CreatedAt: now,
		}
		if err := store.Save(context.Background(), a); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
}

// TestSQLiteStore_InitialFilter tests the first-letter filter used by the user list.
func TestSQLiteStore_InitialFilter(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	seedAccounts(t, store)
	ctx := context.Background()

	initials, err := store.Initials(ctx)
	if err != nil {
		t.Fatalf("Initials: %v", err)
	}
	for _, letter := range []string{"A", "B", "C"} {
		if !initials[letter] {
			t.Errorf("initial %s missing from %v", letter, initials)
		}
	}
	if initials["D"] {
		t.Error("unexpected initial D")
	}

	got, err := store.List(ctx, ListFilter{Initial: "a", Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].FirstName != "Amy" {
		t.Fatalf("got %+v", got)
	}
	if n, _ := store.Count(ctx, ListFilter{Initial: "A"}); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

// TestSQLiteStore_GetByEmail_IgnoresCase tests login lookups.
func TestSQLiteStore_GetByEmail_IgnoresCase(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	seedAccounts(t, store)

	got, err := store.GetByEmail(context.Background(), " BEA@studio.test ")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != "c" {
		t.Errorf("ID = %s, want c", got.ID)
	}
	if got.PasswordChangeRequired || !got.LockedUntil.IsZero() {
		t.Errorf("defaults wrong: %+v", got)
	}
}

// TestSQLiteStore_ListSorting tests the user list orderings.
func TestSQLiteStore_ListSorting(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	seedAccounts(t, store)
	ctx := context.Background()

	tests := []struct {
		filter ListFilter
		want   []string
	}{
		{ListFilter{}, []string{"Amy", "ann", "bea", "Cat"}},
		{ListFilter{SortBy: SortByName, Desc: true}, []string{"Cat", "bea", "ann", "Amy"}},
		{ListFilter{SortBy: SortByEmail, Desc: true, Limit: 2}, []string{"Cat", "bea"}},
		{ListFilter{SortBy: "password_hash"}, []string{"Amy", "ann", "bea", "Cat"}},
	}
	for _, tt := range tests {
		got, err := store.List(ctx, tt.filter)
		if err != nil {
			t.Fatalf("List(%+v): %v", tt.filter, err)
		}
		var names []string
		for _, a := range got {
			names = append(names, a.FirstName)
		}
		if strings.Join(names, ",") != strings.Join(tt.want, ",") {
			t.Errorf("List(%+v) = %v, want %v", tt.filter, names, tt.want)
		}
	}
}
