package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/account"
)

const accountColumns = "id, email, username, first_name, last_name, password_hash, role, created_at, failed_logins, locked_until, password_change_required"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new AccountStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE id = ?", id)
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, fmt.Errorf("account not found: %w", err)
	}
	return entity, err
}

// GetByEmail retrieves an Account by email, ignoring case.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE lower(email) = lower(?)", strings.TrimSpace(email))
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, fmt.Errorf("account not found: %w", err)
	}
	return entity, err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO account (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, username=excluded.username, first_name=excluded.first_name,
		   last_name=excluded.last_name, password_hash=excluded.password_hash, role=excluded.role,
		   failed_logins=excluded.failed_logins, locked_until=excluded.locked_until,
		   password_change_required=excluded.password_change_required`,
		entity.ID,
		entity.Email,
		entity.Username,
		entity.FirstName,
		entity.LastName,
		entity.PasswordHash,
		entity.Role,
		storage.FormatTime(entity.CreatedAt),
		entity.FailedLogins,
		storage.NullTime(entity.LockedUntil),
		entity.PasswordChangeRequired,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes an Account from the database.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM account WHERE id = ?", id)
	return err
}

// List retrieves Accounts ordered by first name.
// PRE: filter.Limit > 0, or 0 for no limit
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	where, args := filter.where()
	query := "SELECT " + accountColumns + " FROM account" + where + filter.orderBy()
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of accounts matching the filter. Limit and Offset are ignored.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := filter.where()
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account"+where, args...).Scan(&count)
	return count, err
}

// Initials returns the set of upper-cased first-name initials in use.
func (s *SQLiteStore) Initials(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT upper(substr(trim(first_name), 1, 1)) FROM account WHERE trim(first_name) != ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	initials := make(map[string]bool)
	for rows.Next() {
		var letter string
		if err := rows.Scan(&letter); err != nil {
			return nil, err
		}
		initials[letter] = true
	}
	return initials, rows.Err()
}

var orderColumns = map[string][]string{
	SortByName:   {"lower(first_name)", "lower(last_name)"},
	SortByEmail:  {"lower(email)"},
	SortByJoined: {"created_at"},
}

func (f ListFilter) orderBy() string {
	cols, ok := orderColumns[f.SortBy]
	if !ok {
		cols = orderColumns[SortByName]
	}
	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}
	terms := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		terms = append(terms, c+dir)
	}
	// id keeps paging stable between equal names
	terms = append(terms, "id")
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (f ListFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, f.Role)
	}
	if f.Initial != "" {
		clauses = append(clauses, "upper(substr(trim(first_name), 1, 1)) = ?")
		args = append(args, strings.ToUpper(f.Initial))
	}
	if f.Search != "" {
		clauses = append(clauses, "(first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR username LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...interface{}) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	var lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.Username,
		&entity.FirstName,
		&entity.LastName,
		&entity.PasswordHash,
		&entity.Role,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
		&entity.PasswordChangeRequired,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt = storage.ParseTime(createdAt)
	entity.LockedUntil = storage.ParseNullTime(lockedUntil)
	return entity, nil
}
