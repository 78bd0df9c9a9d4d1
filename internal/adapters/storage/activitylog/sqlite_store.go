package activitylog

import (
	"context"
	"strings"
	"time"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/activitylog"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new activity log store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append writes a log entry. Entries are never updated.
// PRE: entry has been validated
func (s *SQLiteStore) Append(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO activity_log (id, timestamp, log) VALUES (?, ?, ?)",
		e.ID, storage.FormatTime(e.Timestamp), e.Log)
	return err
}

// List returns entries matching the filter in timestamp order.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Entry, error) {
	where, args := filter.where()
	order := " ORDER BY timestamp DESC, id"
	if filter.Oldest {
		order = " ORDER BY timestamp ASC, id"
	}
	query := "SELECT id, timestamp, log FROM activity_log" + where + order
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Log); err != nil {
			return nil, err
		}
		e.Timestamp = storage.ParseTime(ts)
		results = append(results, e)
	}
	return results, rows.Err()
}

// Count returns the number of entries matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := filter.where()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_log"+where, args...).Scan(&n)
	return n, err
}

// DeleteByLog removes every entry with exactly this text.
// Workers use it to keep a single copy of their "nothing to do" entry.
func (s *SQLiteStore) DeleteByLog(ctx context.Context, log string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM activity_log WHERE log = ?", log)
	return err
}

func (f ListFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.Search != "" {
		clauses = append(clauses, "log LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if !f.Day.IsZero() {
		start := f.Day.UTC().Truncate(24 * time.Hour)
		clauses = append(clauses, "timestamp >= ? AND timestamp < ?")
		args = append(args, storage.FormatTime(start), storage.FormatTime(start.Add(24*time.Hour)))
	}
	if f.HideHousekeeping {
		clauses = append(clauses, "NOT (log LIKE ? AND log LIKE ?)")
		args = append(args, domain.CronPrefix+"%", "%nothing to%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
