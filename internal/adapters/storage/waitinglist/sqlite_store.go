package waitinglist

import (
	"context"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/waitinglist"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new WaitingListStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Add puts a user on an event's waiting list.
// PRE: entity has been validated
// POST: Exactly one entry exists for (UserID, EventID); an existing entry keeps its join date
func (s *SQLiteStore) Add(ctx context.Context, w domain.WaitingListUser) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waiting_list_user (id, user_id, event_id, date_joined) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, event_id) DO NOTHING`,
		w.ID, w.UserID, w.EventID, storage.FormatTime(w.DateJoined))
	return err
}

// Remove takes a user off an event's waiting list. Removing an absent user is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, userID, eventID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM waiting_list_user WHERE user_id = ? AND event_id = ?", userID, eventID)
	return err
}

// Exists reports whether the user is waiting for the event.
func (s *SQLiteStore) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM waiting_list_user WHERE user_id = ? AND event_id = ?", userID, eventID).Scan(&n)
	return n > 0, err
}

// ListByEvent returns the event's waiting users in the order they joined.
func (s *SQLiteStore) ListByEvent(ctx context.Context, eventID string) ([]domain.WaitingListUser, error) {
	return s.query(ctx,
		"SELECT id, user_id, event_id, date_joined FROM waiting_list_user WHERE event_id = ? ORDER BY date_joined, id", eventID)
}

// ListByUser returns every waiting list the user is on.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]domain.WaitingListUser, error) {
	return s.query(ctx,
		"SELECT id, user_id, event_id, date_joined FROM waiting_list_user WHERE user_id = ? ORDER BY date_joined", userID)
}

// DeleteByEvent clears an event's waiting list.
func (s *SQLiteStore) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM waiting_list_user WHERE event_id = ?", eventID)
	return err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]domain.WaitingListUser, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.WaitingListUser
	for rows.Next() {
		var w domain.WaitingListUser
		var joined string
		if err := rows.Scan(&w.ID, &w.UserID, &w.EventID, &joined); err != nil {
			return nil, err
		}
		w.DateJoined = storage.ParseTime(joined)
		results = append(results, w)
	}
	return results, rows.Err()
}
