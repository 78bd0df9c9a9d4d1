package projections

import (
	"context"
	"testing"
	"time"

	domainAccount "studio/internal/domain/account"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
	domainWaiting "studio/internal/domain/waitinglist"
)

var (
	alice = domainAccount.Account{ID: "u1", Email: "alice@example.com", Username: "alice", FirstName: "Alice", LastName: "Smith"}
	bob   = domainAccount.Account{ID: "u2", Email: "bob@example.com", Username: "bob", FirstName: "Bob", LastName: "Jones"}
	cara  = domainAccount.Account{ID: "u3", Email: "cara@example.com", Username: "cara", FirstName: "Cara"}
)

func registerDeps(events []domainEvent.Event, bookings []domainBooking.Booking, waiting []domainWaiting.WaitingListUser) RegisterQueryDeps {
	return RegisterQueryDeps{
		Accounts:    &mockAccounts{accounts: []domainAccount.Account{alice, bob, cara}},
		Events:      &mockEvents{events: events},
		Bookings:    &mockBookings{bookings: bookings},
		WaitingList: &mockWaitingList{entries: waiting},
		Now:         fixedClock,
	}
}

// TestQueryGetRegister_StatusFilters verifies OPEN, CANCELLED and ALL views of one event.
func TestQueryGetRegister_StatusFilters(t *testing.T) {
	ev := studioEvent("e1", "Pole", domainEvent.TypeRegularSession, testNow.Add(time.Hour))
	ev.MaxParticipants = 3
	owing := openBooking("b1", "u1", "e1")
	owing.CancellationFeeIncurred = true
	cancelled := openBooking("b2", "u2", "e1")
	cancelled.Status = domainBooking.StatusCancelled
	deps := registerDeps([]domainEvent.Event{ev}, []domainBooking.Booking{owing, cancelled},
		[]domainWaiting.WaitingListUser{{ID: "w1", UserID: "u3", EventID: "e1"}})

	tests := []struct {
		status string
		rows   int
	}{
		{RegisterOpen, 1},
		{RegisterCancelled, 1},
		{RegisterAll, 2},
		{"bogus", 1},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			res, err := QueryGetRegister(context.Background(), "e1", tt.status, deps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Rows) != tt.rows {
				t.Fatalf("rows=%d want %d", len(res.Rows), tt.rows)
			}
			if res.SpacesLeft != 2 || !res.CanAddMore || res.WaitingCount != 1 {
				t.Errorf("unexpected summary %+v", res)
			}
			if len(res.AddableUsers) != 2 {
				t.Errorf("addable=%d want 2 (everyone without an open booking)", len(res.AddableUsers))
			}
		})
	}

	res, _ := QueryGetRegister(context.Background(), "e1", RegisterOpen, deps)
	row := res.Rows[0]
	if row.Name != "Alice Smith" || !row.HasOutstandingFees || row.FeeText != "£5.00" {
		t.Errorf("unexpected row %+v", row)
	}
}

// TestQueryGetRegisterList_Window verifies the 7-day window and show_all.
func TestQueryGetRegisterList_Window(t *testing.T) {
	earlierToday := studioEvent("e1", "Pole", domainEvent.TypeRegularSession, testNow.Add(-2*time.Hour))
	nextWeek := studioEvent("e2", "Pole", domainEvent.TypeRegularSession, testNow.Add(6*24*time.Hour))
	later := studioEvent("e3", "Pole", domainEvent.TypeRegularSession, testNow.Add(30*24*time.Hour))
	workshop := studioEvent("e4", "Spins", domainEvent.TypeWorkshop, testNow.Add(24*time.Hour))
	deps := registerDeps([]domainEvent.Event{earlierToday, nextWeek, later, workshop}, []domainBooking.Booking{openBooking("b1", "u1", "e1")}, nil)

	items, err := QueryGetRegisterList(context.Background(), "", false, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].Event.ID != "e1" || items[0].OpenBookings != 1 {
		t.Fatalf("unexpected items %+v", items)
	}

	all, err := QueryGetRegisterList(context.Background(), domainEvent.TypeRegularSession, true, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("items=%d want 3", len(all))
	}
}

// TestQueryGetWaitingList returns names in join order.
func TestQueryGetWaitingList(t *testing.T) {
	ev := studioEvent("e1", "Pole", domainEvent.TypeRegularSession, testNow.Add(time.Hour))
	deps := registerDeps([]domainEvent.Event{ev}, nil, []domainWaiting.WaitingListUser{
		{ID: "w1", UserID: "u2", EventID: "e1", DateJoined: testNow.Add(-2 * time.Hour)},
		{ID: "w2", UserID: "u1", EventID: "e1", DateJoined: testNow.Add(-time.Hour)},
	})
	_, rows, err := QueryGetWaitingList(context.Background(), "e1", deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "Bob Jones" || rows[1].Email != "alice@example.com" {
		t.Errorf("unexpected rows %+v", rows)
	}
}
