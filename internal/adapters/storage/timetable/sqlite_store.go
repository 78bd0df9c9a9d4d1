package timetable

import (
	"context"
	"database/sql"
	"fmt"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/timetable"
)

const sessionColumns = "id, name, level, day, start_time, end_time, session_type_id, venue_id, cost, alt_cost, max_participants, cancellation_fee, cancellation_period, members_only, show_on_timetable_page"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new TimetableStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetSession retrieves a timetable session by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM timetable_session WHERE id = ?", id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Session{}, fmt.Errorf("timetable session not found: %w", err)
	}
	return sess, err
}

// SaveSession persists a timetable session.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) SaveSession(ctx context.Context, v domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timetable_session (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, level=excluded.level, day=excluded.day, start_time=excluded.start_time,
		   end_time=excluded.end_time, session_type_id=excluded.session_type_id, venue_id=excluded.venue_id,
		   cost=excluded.cost, alt_cost=excluded.alt_cost, max_participants=excluded.max_participants,
		   cancellation_fee=excluded.cancellation_fee, cancellation_period=excluded.cancellation_period,
		   members_only=excluded.members_only, show_on_timetable_page=excluded.show_on_timetable_page`,
		v.ID, v.Name, v.Level, v.Day, v.StartTime, v.EndTime, v.SessionTypeID, v.VenueID,
		v.Cost, v.AltCost, v.MaxParticipants, v.CancellationFee, v.CancellationPeriod,
		v.MembersOnly, v.ShowOnTimetablePage,
	)
	return err
}

// DeleteSession removes a timetable session. Events already generated from it are kept.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM timetable_session WHERE id = ?", id)
	return err
}

// ListSessions returns sessions in week order. publicOnly drops sessions hidden from the timetable page.
func (s *SQLiteStore) ListSessions(ctx context.Context, publicOnly bool) ([]domain.Session, error) {
	query := "SELECT " + sessionColumns + " FROM timetable_session"
	if publicOnly {
		query += " WHERE show_on_timetable_page = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY day, start_time, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

// GetVenue retrieves a venue by its ID.
func (s *SQLiteStore) GetVenue(ctx context.Context, id string) (domain.Venue, error) {
	var v domain.Venue
	err := s.db.QueryRowContext(ctx, "SELECT id, name, abbreviation, address FROM venue WHERE id = ?", id).
		Scan(&v.ID, &v.Name, &v.Abbreviation, &v.Address)
	if err == sql.ErrNoRows {
		return domain.Venue{}, fmt.Errorf("venue not found: %w", err)
	}
	return v, err
}

// SaveVenue persists a venue.
func (s *SQLiteStore) SaveVenue(ctx context.Context, v domain.Venue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO venue (id, name, abbreviation, address) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, abbreviation=excluded.abbreviation, address=excluded.address`,
		v.ID, v.Name, v.Abbreviation, v.Address)
	return err
}

// DeleteVenue removes a venue. Fails while sessions still reference it.
func (s *SQLiteStore) DeleteVenue(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM venue WHERE id = ?", id)
	return err
}

// ListVenues returns venues by name.
func (s *SQLiteStore) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, abbreviation, address FROM venue ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Venue
	for rows.Next() {
		var v domain.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Abbreviation, &v.Address); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// GetSessionType retrieves a session type by its ID.
func (s *SQLiteStore) GetSessionType(ctx context.Context, id string) (domain.SessionType, error) {
	var st domain.SessionType
	err := s.db.QueryRowContext(ctx, "SELECT id, name, description FROM session_type WHERE id = ?", id).
		Scan(&st.ID, &st.Name, &st.Description)
	if err == sql.ErrNoRows {
		return domain.SessionType{}, fmt.Errorf("session type not found: %w", err)
	}
	return st, err
}

// SaveSessionType persists a session type.
func (s *SQLiteStore) SaveSessionType(ctx context.Context, st domain.SessionType) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_type (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description`,
		st.ID, st.Name, st.Description)
	return err
}

// DeleteSessionType removes a session type. Fails while sessions still reference it.
func (s *SQLiteStore) DeleteSessionType(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session_type WHERE id = ?", id)
	return err
}

// ListSessionTypes returns session types by name.
func (s *SQLiteStore) ListSessionTypes(ctx context.Context) ([]domain.SessionType, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description FROM session_type ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.SessionType
	for rows.Next() {
		var st domain.SessionType
		if err := rows.Scan(&st.ID, &st.Name, &st.Description); err != nil {
			return nil, err
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

func scanSession(scan func(dest ...interface{}) error) (domain.Session, error) {
	var v domain.Session
	err := scan(&v.ID, &v.Name, &v.Level, &v.Day, &v.StartTime, &v.EndTime, &v.SessionTypeID,
		&v.VenueID, &v.Cost, &v.AltCost, &v.MaxParticipants, &v.CancellationFee,
		&v.CancellationPeriod, &v.MembersOnly, &v.ShowOnTimetablePage)
	return v, err
}
