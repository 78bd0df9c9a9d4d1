package gallery

import (
	"context"

	domain "studio/internal/domain/gallery"
)

// Store persists gallery categories and images.
type Store interface {
	SaveCategory(ctx context.Context, value domain.Category) error
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SaveImage(ctx context.Context, value domain.Image) error
	GetImage(ctx context.Context, id string) (domain.Image, error)
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context, categoryID string) ([]domain.Image, error)
	CountImages(ctx context.Context) (int, error)
}
