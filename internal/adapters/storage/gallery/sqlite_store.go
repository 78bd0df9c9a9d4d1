package gallery

import (
	"context"
	"database/sql"
	"fmt"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/gallery"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new GalleryStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveCategory persists a category.
func (s *SQLiteStore) SaveCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO gallery_category (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name=excluded.name",
		c.ID, c.Name)
	return err
}

// GetCategory retrieves a category by its ID.
func (s *SQLiteStore) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM gallery_category WHERE id = ?", id).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return domain.Category{}, fmt.Errorf("gallery category not found: %w", err)
	}
	return c, err
}

// DeleteCategory removes a category together with its image rows.
// The image files themselves are removed by the caller.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_image WHERE category_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM gallery_category WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListCategories returns categories by name.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM gallery_category ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// SaveImage persists an image record.
// PRE: entity has been validated and its category exists
func (s *SQLiteStore) SaveImage(ctx context.Context, img domain.Image) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gallery_image (id, category_id, filename, caption, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET category_id=excluded.category_id, filename=excluded.filename, caption=excluded.caption`,
		img.ID, img.CategoryID, img.Filename, img.Caption, storage.FormatTime(img.CreatedAt))
	return err
}

// GetImage retrieves an image by its ID.
func (s *SQLiteStore) GetImage(ctx context.Context, id string) (domain.Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx,
		"SELECT id, category_id, filename, caption, created_at FROM gallery_image WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Image{}, fmt.Errorf("gallery image not found: %w", err)
	}
	return img, err
}

// DeleteImage removes an image record.
func (s *SQLiteStore) DeleteImage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM gallery_image WHERE id = ?", id)
	return err
}

// ListImages returns images newest first. domain.AllCategories or "" lists every category.
func (s *SQLiteStore) ListImages(ctx context.Context, categoryID string) ([]domain.Image, error) {
	query := "SELECT id, category_id, filename, caption, created_at FROM gallery_image"
	var args []interface{}
	if categoryID != "" && categoryID != domain.AllCategories {
		query += " WHERE category_id = ?"
		args = append(args, categoryID)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Image
	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, img)
	}
	return results, rows.Err()
}

// CountImages returns the total number of images.
func (s *SQLiteStore) CountImages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gallery_image").Scan(&n)
	return n, err
}

func scanImage(scan func(dest ...interface{}) error) (domain.Image, error) {
	var img domain.Image
	var created string
	if err := scan(&img.ID, &img.CategoryID, &img.Filename, &img.Caption, &created); err != nil {
		return domain.Image{}, err
	}
	img.CreatedAt = storage.ParseTime(created)
	return img, nil
}
