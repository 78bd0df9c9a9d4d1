package gallery

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// AllCategories is the gallery filter value that shows every image.
const AllCategories = "All"

// Domain errors
var (
	ErrEmptyCategoryName = errors.New("category name cannot be empty")
	ErrEmptyCategory     = errors.New("image must belong to a category")
	ErrEmptyFilename     = errors.New("image file is required")
	ErrUnsupportedFormat = errors.New("image must be a jpg, png, gif or webp file")
	ErrCaptionTooLong    = errors.New("caption cannot exceed 255 characters")
)

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// Category groups gallery images.
type Category struct {
	ID   string
	Name string
}

// Validate checks if the Category has valid data.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	return nil
}

// Image is a photo shown in the gallery. The file lives in the upload directory.
type Image struct {
	ID         string
	CategoryID string
	Filename   string
	Caption    string
	CreatedAt  time.Time
}

// Validate checks if the Image has valid data.
// PRE: Image struct is populated
// POST: Returns nil if valid, error otherwise
func (i *Image) Validate() error {
	if strings.TrimSpace(i.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(i.Filename) == "" {
		return ErrEmptyFilename
	}
	if !AllowedFile(i.Filename) {
		return ErrUnsupportedFormat
	}
	if len(i.Caption) > 255 {
		return ErrCaptionTooLong
	}
	return nil
}

// AllowedFile reports whether the filename has a supported image extension.
func AllowedFile(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}
