package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/booking"
)

const bookingColumns = "id, reference, user_id, event_id, paid, date_booked, date_rebooked, status, attended, no_show, cancellation_fee_incurred, cancellation_fee_paid, reminder_sent, invoice_id, checkout_time"

// activeClause matches bookings that hold a place.
const activeClause = "status = 'OPEN' AND no_show = 0"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new BookingStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Booking by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM booking WHERE id = ?", id)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Booking{}, fmt.Errorf("booking not found: %w", err)
	}
	return b, err
}

// GetByUserAndEvent retrieves the user's booking for an event, if there is one.
// POST: found=false with a nil error when the user has never booked the event
func (s *SQLiteStore) GetByUserAndEvent(ctx context.Context, userID, eventID string) (domain.Booking, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM booking WHERE user_id = ? AND event_id = ?", userID, eventID)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, err
	}
	return b, true, nil
}

// Save persists a Booking, enforcing event capacity inside the same transaction.
// PRE: entity has been validated
// POST: Entity is persisted, or domain.ErrEventFull is returned for a new or
// reopened booking on a full event
func (s *SQLiteStore) Save(ctx context.Context, b domain.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxParticipants int
	err = tx.QueryRowContext(ctx, "SELECT max_participants FROM event WHERE id = ?", b.EventID).Scan(&maxParticipants)
	if err == sql.ErrNoRows {
		return fmt.Errorf("event not found: %w", err)
	}
	if err != nil {
		return err
	}

	var prev *domain.Booking
	existing, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM booking WHERE id = ?", b.ID).Scan)
	switch {
	case err == nil:
		prev = &existing
	case err != sql.ErrNoRows:
		return err
	}

	var open int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM booking WHERE event_id = ? AND id != ? AND "+activeClause,
		b.EventID, b.ID).Scan(&open)
	if err != nil {
		return err
	}
	if err := b.CheckCapacity(prev, maxParticipants-open); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO booking (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   paid=excluded.paid, date_rebooked=excluded.date_rebooked, status=excluded.status,
		   attended=excluded.attended, no_show=excluded.no_show,
		   cancellation_fee_incurred=excluded.cancellation_fee_incurred,
		   cancellation_fee_paid=excluded.cancellation_fee_paid,
		   reminder_sent=excluded.reminder_sent, invoice_id=excluded.invoice_id,
		   checkout_time=excluded.checkout_time`,
		b.ID, b.Reference, b.UserID, b.EventID, b.Paid,
		storage.FormatTime(b.DateBooked), storage.NullTime(b.DateRebooked), b.Status,
		b.Attended, b.NoShow, b.CancellationFeeIncurred, b.CancellationFeePaid,
		b.ReminderSent, storage.NullString(b.InvoiceID), storage.NullTime(b.CheckoutTime),
	)
	if err != nil {
		return fmt.Errorf("save booking %s: %w", b.ID, err)
	}
	return tx.Commit()
}

// CountOpen returns the number of bookings holding a place on the event.
func (s *SQLiteStore) CountOpen(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM booking WHERE event_id = ? AND "+activeClause, eventID).Scan(&n)
	return n, err
}

// ListByEvent returns an event's bookings in booking order. An empty status returns all.
func (s *SQLiteStore) ListByEvent(ctx context.Context, eventID, status string) ([]domain.Booking, error) {
	if status == "" {
		return s.query(ctx, "SELECT "+bookingColumns+" FROM booking WHERE event_id = ? ORDER BY date_booked", eventID)
	}
	return s.query(ctx, "SELECT "+bookingColumns+" FROM booking WHERE event_id = ? AND status = ? ORDER BY date_booked", eventID, status)
}

// ListByUser returns all of a user's bookings ordered by event date.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.query(ctx,
		"SELECT "+prefixed("b")+" FROM booking b JOIN event e ON e.id = b.event_id WHERE b.user_id = ? ORDER BY e.date",
		userID)
}

// ListUnpaidForUser returns the user's open, unpaid bookings: the checkout basket.
func (s *SQLiteStore) ListUnpaidForUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.query(ctx,
		"SELECT "+bookingColumns+" FROM booking WHERE user_id = ? AND paid = 0 AND "+activeClause+" ORDER BY date_booked",
		userID)
}

// ListByInvoice returns the bookings attached to an invoice.
func (s *SQLiteStore) ListByInvoice(ctx context.Context, invoiceID string) ([]domain.Booking, error) {
	return s.query(ctx, "SELECT "+bookingColumns+" FROM booking WHERE invoice_id = ? ORDER BY date_booked", invoiceID)
}

// ListOutstandingFees returns every booking with an incurred, unpaid cancellation fee.
func (s *SQLiteStore) ListOutstandingFees(ctx context.Context) ([]domain.Booking, error) {
	return s.query(ctx,
		"SELECT "+bookingColumns+" FROM booking WHERE cancellation_fee_incurred = 1 AND cancellation_fee_paid = 0 ORDER BY user_id, date_booked")
}

// ListFeesForUser returns the user's bookings that have ever incurred a fee.
func (s *SQLiteStore) ListFeesForUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.query(ctx,
		"SELECT "+prefixed("b")+" FROM booking b JOIN event e ON e.id = b.event_id WHERE b.user_id = ? AND b.cancellation_fee_incurred = 1 ORDER BY e.date DESC",
		userID)
}

// ListReminderDue returns paid, active, unreminded bookings for non-cancelled events
// starting in [eventsFrom, eventsTo) that were last booked before bookedBefore.
func (s *SQLiteStore) ListReminderDue(ctx context.Context, eventsFrom, eventsTo, bookedBefore time.Time) ([]domain.Booking, error) {
	cutoff := storage.FormatTime(bookedBefore)
	return s.query(ctx,
		`SELECT `+prefixed("b")+` FROM booking b JOIN event e ON e.id = b.event_id
		 WHERE e.date >= ? AND e.date < ? AND e.cancelled = 0
		   AND b.status = 'OPEN' AND b.no_show = 0 AND b.paid = 1 AND b.reminder_sent = 0
		   AND b.date_booked < ? AND (b.date_rebooked IS NULL OR b.date_rebooked < ?)
		 ORDER BY e.date`,
		storage.FormatTime(eventsFrom), storage.FormatTime(eventsTo), cutoff, cutoff)
}

// ListUnpaidExpired returns active unpaid bookings last booked before bookedBefore,
// skipping any that entered checkout at or after checkoutBefore.
func (s *SQLiteStore) ListUnpaidExpired(ctx context.Context, bookedBefore, checkoutBefore time.Time) ([]domain.Booking, error) {
	return s.query(ctx,
		`SELECT `+bookingColumns+` FROM booking
		 WHERE paid = 0 AND `+activeClause+`
		   AND COALESCE(date_rebooked, date_booked) < ?
		   AND date_booked < ?
		   AND (checkout_time IS NULL OR checkout_time < ?)
		 ORDER BY date_booked`,
		storage.FormatTime(bookedBefore), storage.FormatTime(bookedBefore), storage.FormatTime(checkoutBefore))
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// prefixed qualifies bookingColumns with a table alias for joins.
func prefixed(alias string) string {
	return alias + ".id, " + alias + ".reference, " + alias + ".user_id, " + alias + ".event_id, " +
		alias + ".paid, " + alias + ".date_booked, " + alias + ".date_rebooked, " + alias + ".status, " +
		alias + ".attended, " + alias + ".no_show, " + alias + ".cancellation_fee_incurred, " +
		alias + ".cancellation_fee_paid, " + alias + ".reminder_sent, " + alias + ".invoice_id, " +
		alias + ".checkout_time"
}

func scanBooking(scan func(dest ...interface{}) error) (domain.Booking, error) {
	var b domain.Booking
	var dateBooked string
	var dateRebooked, invoiceID, checkoutTime sql.NullString
	err := scan(
		&b.ID, &b.Reference, &b.UserID, &b.EventID, &b.Paid, &dateBooked, &dateRebooked,
		&b.Status, &b.Attended, &b.NoShow, &b.CancellationFeeIncurred, &b.CancellationFeePaid,
		&b.ReminderSent, &invoiceID, &checkoutTime,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.DateBooked = storage.ParseTime(dateBooked)
	b.DateRebooked = storage.ParseNullTime(dateRebooked)
	b.InvoiceID = invoiceID.String
	b.CheckoutTime = storage.ParseNullTime(checkoutTime)
	return b, nil
}
