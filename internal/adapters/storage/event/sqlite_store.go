package event

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/event"
)

const eventColumns = "id, name, event_type, description, date, venue_id, max_participants, cost, show_on_site, cancellation_period, email_studio_when_booked, slug, allow_booking_cancellation, cancelled, cancellation_fee, members_only"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new EventStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Event by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM event WHERE id = ?", id)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Event{}, fmt.Errorf("event not found: %w", err)
	}
	return e, err
}

// GetBySlug retrieves an Event by its URL slug.
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM event WHERE slug = ?", slug)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Event{}, fmt.Errorf("event not found: %w", err)
	}
	return e, err
}

// Save persists an Event to the database.
// PRE: entity has been validated and has a slug
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, event_type=excluded.event_type, description=excluded.description,
		   date=excluded.date, venue_id=excluded.venue_id, max_participants=excluded.max_participants,
		   cost=excluded.cost, show_on_site=excluded.show_on_site,
		   cancellation_period=excluded.cancellation_period,
		   email_studio_when_booked=excluded.email_studio_when_booked, slug=excluded.slug,
		   allow_booking_cancellation=excluded.allow_booking_cancellation,
		   cancelled=excluded.cancelled, cancellation_fee=excluded.cancellation_fee,
		   members_only=excluded.members_only`,
		e.ID, e.Name, e.EventType, e.Description, storage.FormatTime(e.Date),
		storage.NullString(e.VenueID), e.MaxParticipants, e.Cost, e.ShowOnSite,
		e.CancellationPeriod, e.EmailStudioWhenBooked, e.Slug, e.AllowBookingCancellation,
		e.Cancelled, e.CancellationFee, e.MembersOnly,
	)
	if err != nil {
		return fmt.Errorf("save event %s: %w", e.ID, err)
	}
	return tx.Commit()
}

// Delete removes an Event from the database.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM event WHERE id = ?", id)
	return err
}

// List retrieves Events matching the filter, ordered by date.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Event, error) {
	var clauses []string
	var args []interface{}
	if filter.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "date < ?")
		args = append(args, storage.FormatTime(filter.To))
	}
	if filter.ShowOnSiteOnly {
		clauses = append(clauses, "show_on_site = 1")
	}
	if !filter.IncludeCancelled {
		clauses = append(clauses, "cancelled = 0")
	}

	query := "SELECT " + eventColumns + " FROM event"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date ASC, name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	return s.queryEvents(ctx, query, args...)
}

// ListMatching returns events with the same name, type, date and venue, oldest first.
// More than one result means the timetable was uploaded twice for that slot.
func (s *SQLiteStore) ListMatching(ctx context.Context, name, eventType string, date time.Time, venueID string) ([]domain.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM event WHERE name = ? AND event_type = ? AND date = ? AND IFNULL(venue_id, '') = ? ORDER BY rowid",
		name, eventType, storage.FormatTime(date), venueID)
}

// SlugExists reports whether any event already uses slug.
func (s *SQLiteStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event WHERE slug = ?", slug).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func scanEvent(scan func(dest ...interface{}) error) (domain.Event, error) {
	var e domain.Event
	var date string
	var venueID sql.NullString
	err := scan(
		&e.ID, &e.Name, &e.EventType, &e.Description, &date, &venueID,
		&e.MaxParticipants, &e.Cost, &e.ShowOnSite, &e.CancellationPeriod,
		&e.EmailStudioWhenBooked, &e.Slug, &e.AllowBookingCancellation,
		&e.Cancelled, &e.CancellationFee, &e.MembersOnly,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Date = storage.ParseTime(date)
	e.VenueID = venueID.String
	return e, nil
}
