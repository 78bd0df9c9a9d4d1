package website

import (
	"context"
	"database/sql"
	"fmt"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/website"
)

const pageColumns = "id, name, title, content, active, restricted, display_in_menu, menu_order"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new WebsiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SavePage persists a page.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) SavePage(ctx context.Context, p domain.Page) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, title=excluded.title, content=excluded.content,
		   active=excluded.active, restricted=excluded.restricted,
		   display_in_menu=excluded.display_in_menu, menu_order=excluded.menu_order`,
		p.ID, p.Name, p.Title, p.Content, p.Active, p.Restricted, p.DisplayInMenu, p.MenuOrder)
	return err
}

// GetPage retrieves a page by its ID.
func (s *SQLiteStore) GetPage(ctx context.Context, id string) (domain.Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM page WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Page{}, fmt.Errorf("page not found: %w", err)
	}
	return p, err
}

// GetPageByName retrieves a page by its URL name.
func (s *SQLiteStore) GetPageByName(ctx context.Context, name string) (domain.Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM page WHERE name = ?", name).Scan)
	if err == sql.ErrNoRows {
		return domain.Page{}, fmt.Errorf("page not found: %w", err)
	}
	return p, err
}

// DeletePage removes a page.
func (s *SQLiteStore) DeletePage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM page WHERE id = ?", id)
	return err
}

// ListPages returns pages in menu order. menuOnly keeps active pages flagged for the menu.
func (s *SQLiteStore) ListPages(ctx context.Context, menuOnly bool) ([]domain.Page, error) {
	query := "SELECT " + pageColumns + " FROM page"
	if menuOnly {
		query += " WHERE active = 1 AND display_in_menu = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY menu_order, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Page
	for rows.Next() {
		p, err := scanPage(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// SaveAbout persists an about page section.
func (s *SQLiteStore) SaveAbout(ctx context.Context, a domain.AboutInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO about_info (id, heading, subheading, content, sort_order) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET heading=excluded.heading, subheading=excluded.subheading,
		   content=excluded.content, sort_order=excluded.sort_order`,
		a.ID, a.Heading, a.Subheading, a.Content, a.Order)
	return err
}

// GetAbout retrieves an about page section by its ID.
func (s *SQLiteStore) GetAbout(ctx context.Context, id string) (domain.AboutInfo, error) {
	var a domain.AboutInfo
	err := s.db.QueryRowContext(ctx, "SELECT id, heading, subheading, content, sort_order FROM about_info WHERE id = ?", id).
		Scan(&a.ID, &a.Heading, &a.Subheading, &a.Content, &a.Order)
	if err == sql.ErrNoRows {
		return domain.AboutInfo{}, fmt.Errorf("about info not found: %w", err)
	}
	return a, err
}

// DeleteAbout removes an about page section.
func (s *SQLiteStore) DeleteAbout(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM about_info WHERE id = ?", id)
	return err
}

// ListAbout returns the about page sections in display order.
func (s *SQLiteStore) ListAbout(ctx context.Context) ([]domain.AboutInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, heading, subheading, content, sort_order FROM about_info ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.AboutInfo
	for rows.Next() {
		var a domain.AboutInfo
		if err := rows.Scan(&a.ID, &a.Heading, &a.Subheading, &a.Content, &a.Order); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanPage(scan func(dest ...interface{}) error) (domain.Page, error) {
	var p domain.Page
	err := scan(&p.ID, &p.Name, &p.Title, &p.Content, &p.Active, &p.Restricted, &p.DisplayInMenu, &p.MenuOrder)
	return p, err
}
