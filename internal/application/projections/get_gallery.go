package projections

import (
	"context"
	"fmt"

	domainGallery "studio/internal/domain/gallery"
)

// GetGalleryResult carries the public gallery page.
type GetGalleryResult struct {
	Categories []domainGallery.Category
	Images     []domainGallery.Image
	Selected   string
	Total      int // images across every category
}

// QueryGetGallery lists images in one category, or all of them.
// An empty or unknown category selects "All".
func QueryGetGallery(ctx context.Context, category string, store GalleryStore) (GetGalleryResult, error) {
	categories, err := store.ListCategories(ctx)
	if err != nil {
		return GetGalleryResult{}, fmt.Errorf("list categories: %w", err)
	}
	selected := domainGallery.AllCategories
	for _, c := range categories {
		if c.ID == category {
			selected = c.ID
			break
		}
	}
	images, err := store.ListImages(ctx, selected)
	if err != nil {
		return GetGalleryResult{}, fmt.Errorf("list images: %w", err)
	}
	total, err := store.CountImages(ctx)
	if err != nil {
		return GetGalleryResult{}, fmt.Errorf("count images: %w", err)
	}
	return GetGalleryResult{Categories: categories, Images: images, Selected: selected, Total: total}, nil
}
