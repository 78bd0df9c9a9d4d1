package booking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"studio/internal/adapters/storage/storagetest"
	domain "studio/internal/domain/booking"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setup creates three students and an event with two places at fixedTime + 1 day.
func setup(t *testing.T) (*sql.DB, *SQLiteStore) {
	t.Helper()
	db := storagetest.OpenDB(t)
	storagetest.Exec(t, db,
		`INSERT INTO account (id, email, first_name, role, created_at) VALUES
			('u1', 'u1@studio.test', 'Ann', 'student', '2026-01-01T00:00:00.000000000Z'),
			('u2', 'u2@studio.test', 'Bea', 'student', '2026-01-01T00:00:00.000000000Z'),
			('u3', 'u3@studio.test', 'Cat', 'student', '2026-01-01T00:00:00.000000000Z')`,
		`INSERT INTO event (id, name, event_type, date, max_participants, slug) VALUES
			('e1', 'Pole', 'workshop', '2026-03-02T12:00:00.000000000Z', 2, 'pole')`,
	)
	return db, NewSQLiteStore(db)
}

// TestSQLiteStore_RoundTrip tests Save followed by GetByID and GetByUserAndEvent.
func TestSQLiteStore_RoundTrip(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	b := domain.New("b1", "u1", "e1", fixedTime)
	b.CheckoutTime = fixedTime.Add(time.Minute)
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Reference != b.Reference || got.Status != domain.StatusOpen {
		t.Errorf("got %+v", got)
	}
	if !got.DateBooked.Equal(fixedTime) || !got.CheckoutTime.Equal(b.CheckoutTime) {
		t.Errorf("times: booked=%v checkout=%v", got.DateBooked, got.CheckoutTime)
	}
	if !got.DateRebooked.IsZero() || got.InvoiceID != "" {
		t.Errorf("nullable columns should be empty: %+v", got)
	}

	_, found, err := store.GetByUserAndEvent(ctx, "u1", "e1")
	if err != nil || !found {
		t.Fatalf("GetByUserAndEvent = found %v, err %v", found, err)
	}
	_, found, err = store.GetByUserAndEvent(ctx, "u2", "e1")
	if err != nil || found {
		t.Fatalf("unexpected booking for u2: found %v, err %v", found, err)
	}

	_, err = store.GetByID(ctx, "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing booking err = %v", err)
	}
}

// TestSQLiteStore_CountOpen tests that cancelled and no-show bookings free a place.
func TestSQLiteStore_CountOpen(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	b1 := domain.New("b1", "u1", "e1", fixedTime)
	b2 := domain.New("b2", "u2", "e1", fixedTime)
	for _, b := range []domain.Booking{b1, b2} {
		if err := store.Save(ctx, b); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if n, _ := store.CountOpen(ctx, "e1"); n != 2 {
		t.Fatalf("CountOpen = %d, want 2", n)
	}

	b1.MarkNoShow()
	if err := store.Save(ctx, b1); err != nil {
		t.Fatalf("Save no-show: %v", err)
	}
	b2.Cancel()
	if err := store.Save(ctx, b2); err != nil {
		t.Fatalf("Save cancel: %v", err)
	}
	if n, _ := store.CountOpen(ctx, "e1"); n != 0 {
		t.Fatalf("CountOpen = %d, want 0", n)
	}
}

// TestSQLiteStore_Save_Capacity tests that full events reject new and reopened bookings.
func TestSQLiteStore_Save_Capacity(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	b1 := domain.New("b1", "u1", "e1", fixedTime)
	b2 := domain.New("b2", "u2", "e1", fixedTime)
	for _, b := range []domain.Booking{b1, b2} {
		if err := store.Save(ctx, b); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	if err := store.Save(ctx, domain.New("b3", "u3", "e1", fixedTime)); !errors.Is(err, domain.ErrEventFull) {
		t.Fatalf("third booking err = %v, want ErrEventFull", err)
	}

	// a cancelled booking for a full event can still be recorded
	cancelled := domain.New("b3", "u3", "e1", fixedTime)
	cancelled.Status = domain.StatusCancelled
	if err := store.Save(ctx, cancelled); err != nil {
		t.Fatalf("Save cancelled: %v", err)
	}
	if err := cancelled.Reopen(fixedTime); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, cancelled); !errors.Is(err, domain.ErrEventFull) {
		t.Fatalf("reopen err = %v, want ErrEventFull", err)
	}

	// updating an already open booking never trips the check
	b1.Paid = true
	if err := store.Save(ctx, b1); err != nil {
		t.Fatalf("update open booking: %v", err)
	}
}

// TestSQLiteStore_ListUnpaidExpired tests cart timeout and checkout grace selection.
func TestSQLiteStore_ListUnpaidExpired(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	old := domain.New("b1", "u1", "e1", fixedTime.Add(-30*time.Minute))
	inCheckout := domain.New("b2", "u2", "e1", fixedTime.Add(-30*time.Minute))
	inCheckout.CheckoutTime = fixedTime.Add(-2 * time.Minute)
	for _, b := range []domain.Booking{old, inCheckout} {
		if err := store.Save(ctx, b); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.ListUnpaidExpired(ctx, fixedTime.Add(-15*time.Minute), fixedTime.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ListUnpaidExpired: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("got %+v, want only b1", got)
	}
}

// TestSQLiteStore_ListReminderDue tests reminder selection.
func TestSQLiteStore_ListReminderDue(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	paid := domain.New("b1", "u1", "e1", fixedTime.Add(-24*time.Hour))
	paid.Paid = true
	recent := domain.New("b2", "u2", "e1", fixedTime.Add(-time.Hour))
	recent.Paid = true
	for _, b := range []domain.Booking{paid, recent} {
		if err := store.Save(ctx, b); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.ListReminderDue(ctx, fixedTime, fixedTime.Add(48*time.Hour), fixedTime.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("ListReminderDue: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("got %+v, want only b1", got)
	}

	paid.ReminderSent = true
	if err := store.Save(ctx, paid); err != nil {
		t.Fatal(err)
	}
	got, _ = store.ListReminderDue(ctx, fixedTime, fixedTime.Add(48*time.Hour), fixedTime.Add(-6*time.Hour))
	if len(got) != 0 {
		t.Fatalf("reminded booking selected again: %+v", got)
	}
}

// TestSQLiteStore_Fees tests outstanding fee listings.
func TestSQLiteStore_Fees(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()

	b := domain.New("b1", "u1", "e1", fixedTime)
	b.IncurFee()
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	outstanding, err := store.ListOutstandingFees(ctx)
	if err != nil || len(outstanding) != 1 {
		t.Fatalf("ListOutstandingFees = %d, %v", len(outstanding), err)
	}

	if err := b.ToggleFeePaid(); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, b); err != nil {
		t.Fatal(err)
	}
	outstanding, _ = store.ListOutstandingFees(ctx)
	if len(outstanding) != 0 {
		t.Errorf("paid fee still outstanding")
	}
	fees, _ := store.ListFeesForUser(ctx, "u1")
	if len(fees) != 1 {
		t.Errorf("ListFeesForUser = %d, want 1", len(fees))
	}
}
