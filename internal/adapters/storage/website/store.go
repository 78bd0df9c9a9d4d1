package website

import (
	"context"

	domain "studio/internal/domain/website"
)

// Store persists website pages and about page sections.
type Store interface {
	SavePage(ctx context.Context, value domain.Page) error
	GetPage(ctx context.Context, id string) (domain.Page, error)
	GetPageByName(ctx context.Context, name string) (domain.Page, error)
	DeletePage(ctx context.Context, id string) error
	ListPages(ctx context.Context, menuOnly bool) ([]domain.Page, error)
	SaveAbout(ctx context.Context, value domain.AboutInfo) error
	GetAbout(ctx context.Context, id string) (domain.AboutInfo, error)
	DeleteAbout(ctx context.Context, id string) error
	ListAbout(ctx context.Context) ([]domain.AboutInfo, error)
}
