package gallery

import (
	"context"
	"testing"
	"time"

	"studio/internal/adapters/storage/storagetest"
	domain "studio/internal/domain/gallery"
)

// TestSQLiteStore_ImagesByCategory tests category filtering and cascading category deletes.
func TestSQLiteStore_ImagesByCategory(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, c := range []domain.Category{{ID: "c1", Name: "Shows"}, {ID: "c2", Name: "Classes"}} {
		if err := store.SaveCategory(ctx, c); err != nil {
			t.Fatalf("SaveCategory: %v", err)
		}
	}
	images := []domain.Image{
		{ID: "i1", CategoryID: "c1", Filename: "a.jpg", CreatedAt: now},
		{ID: "i2", CategoryID: "c1", Filename: "b.jpg", CreatedAt: now.Add(time.Minute)},
		{ID: "i3", CategoryID: "c2", Filename: "c.png", CreatedAt: now.Add(2 * time.Minute)},
	}
	for _, img := range images {
		if err := store.SaveImage(ctx, img); err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
	}

	all, _ := store.ListImages(ctx, domain.AllCategories)
	if len(all) != 3 || all[0].ID != "i3" {
		t.Fatalf("all images = %+v", all)
	}
	shows, _ := store.ListImages(ctx, "c1")
	if len(shows) != 2 {
		t.Fatalf("c1 images = %d, want 2", len(shows))
	}

	if err := store.DeleteCategory(ctx, "c1"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if n, _ := store.CountImages(ctx); n != 1 {
		t.Errorf("CountImages = %d, want 1", n)
	}
}
