package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	domainGallery "studio/internal/domain/gallery"
	domainWebsite "studio/internal/domain/website"
)

// maxImageBytes bounds gallery uploads.
const maxImageBytes = 10 << 20

// --- gallery ---

// handleAdminGallery handles GET /studioadmin/gallery?category=<id>
func handleAdminGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, err := stores.GalleryStore.ListCategories(ctx)
	if err != nil {
		internalError(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	images, err := stores.GalleryStore.ListImages(ctx, category)
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "admin_gallery.html", map[string]any{
		"Categories": categories,
		"Images":     images,
		"Selected":   category,
	})
}

// handleAdminCategorySave handles POST /studioadmin/gallery/categories
func handleAdminCategorySave(w http.ResponseWriter, r *http.Request) {
	c := domainGallery.Category{
		ID:   r.FormValue("ID"),
		Name: strings.TrimSpace(r.FormValue("Name")),
	}
	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if c.ID == "" {
		c.ID = generateID()
	}
	if err := stores.GalleryStore.SaveCategory(r.Context(), c); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/gallery", http.StatusSeeOther)
}

// handleAdminCategoryDelete handles POST /studioadmin/gallery/categories/{id}/delete
// Images in the category go with it, files included.
func handleAdminCategoryDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	images, err := stores.GalleryStore.ListImages(ctx, id)
	if err != nil {
		internalError(w, err)
		return
	}
	for _, img := range images {
		if err := stores.GalleryStore.DeleteImage(ctx, img.ID); err != nil {
			internalError(w, err)
			return
		}
		removeUpload(img.Filename)
	}
	if err := stores.GalleryStore.DeleteCategory(ctx, id); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/gallery", http.StatusSeeOther)
}

// handleAdminImageUpload handles POST /studioadmin/gallery/images (multipart: Image, CategoryID, Caption)
func handleAdminImageUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+4096)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "Image is too large", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("Image")
	if err != nil {
		http.Error(w, domainGallery.ErrEmptyFilename.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	img := domainGallery.Image{
		ID:         generateID(),
		CategoryID: r.FormValue("CategoryID"),
		Caption:    strings.TrimSpace(r.FormValue("Caption")),
		CreatedAt:  timeNow(),
	}
	img.Filename = img.ID + strings.ToLower(filepath.Ext(header.Filename))
	if !domainGallery.AllowedFile(header.Filename) {
		http.Error(w, domainGallery.ErrUnsupportedFormat.Error(), http.StatusBadRequest)
		return
	}
	if err := img.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := stores.GalleryStore.GetCategory(r.Context(), img.CategoryID); err != nil {
		http.Error(w, domainGallery.ErrEmptyCategory.Error(), http.StatusBadRequest)
		return
	}

	if err := saveUpload(img.Filename, file); err != nil {
		internalError(w, err)
		return
	}
	if err := stores.GalleryStore.SaveImage(r.Context(), img); err != nil {
		removeUpload(img.Filename)
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/gallery?category="+img.CategoryID, http.StatusSeeOther)
}

// handleAdminImageSave handles POST /studioadmin/gallery/images/{id} (multipart: CategoryID, Caption, optional Image)
// A new Image replaces the stored file; the old file is removed once the record points at the new one.
func handleAdminImageSave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+4096)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "Image is too large", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	img, err := stores.GalleryStore.GetImage(ctx, r.PathValue("id"))
	if err != nil {
		failRequest(w, r, err)
		return
	}
	img.CategoryID = r.FormValue("CategoryID")
	img.Caption = strings.TrimSpace(r.FormValue("Caption"))
	if err := img.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := stores.GalleryStore.GetCategory(ctx, img.CategoryID); err != nil {
		http.Error(w, domainGallery.ErrEmptyCategory.Error(), http.StatusBadRequest)
		return
	}

	oldFilename := img.Filename
	file, header, err := r.FormFile("Image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// caption or category change only
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		defer file.Close()
		if !domainGallery.AllowedFile(header.Filename) {
			http.Error(w, domainGallery.ErrUnsupportedFormat.Error(), http.StatusBadRequest)
			return
		}
		img.Filename = img.ID + "-" + generateID()[:8] + strings.ToLower(filepath.Ext(header.Filename))
		if err := saveUpload(img.Filename, file); err != nil {
			internalError(w, err)
			return
		}
	}

	if err := stores.GalleryStore.SaveImage(ctx, img); err != nil {
		if img.Filename != oldFilename {
			removeUpload(img.Filename)
		}
		internalError(w, err)
		return
	}
	if img.Filename != oldFilename {
		removeUpload(oldFilename)
	}
	http.Redirect(w, r, "/studioadmin/gallery?category="+img.CategoryID, http.StatusSeeOther)
}

// handleAdminImageDelete handles POST /studioadmin/gallery/images/{id}/delete
func handleAdminImageDelete(w http.ResponseWriter, r *http.Request) {
	img, err := stores.GalleryStore.GetImage(r.Context(), r.PathValue("id"))
	if err != nil {
		failRequest(w, r, err)
		return
	}
	if err := stores.GalleryStore.DeleteImage(r.Context(), img.ID); err != nil {
		internalError(w, err)
		return
	}
	removeUpload(img.Filename)
	http.Redirect(w, r, "/studioadmin/gallery?category="+img.CategoryID, http.StatusSeeOther)
}

func saveUpload(name string, src io.Reader) error {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(uploadDir, filepath.Base(name)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func removeUpload(name string) {
	err := os.Remove(filepath.Join(uploadDir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("upload_remove_failed", "file", name, "error", err)
	}
}

// --- pages and about ---

// handleAdminPages handles GET /studioadmin/pages
func handleAdminPages(w http.ResponseWriter, r *http.Request) {
	pages, err := stores.WebsiteStore.ListPages(r.Context(), false)
	if err != nil {
		internalError(w, err)
		return
	}
	about, err := stores.WebsiteStore.ListAbout(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, "admin_pages.html", map[string]any{
		"Pages": pages,
		"About": about,
	})
}

// handleAdminPageForm handles GET/POST for /studioadmin/pages/new and /studioadmin/pages/{id}/edit
func handleAdminPageForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := domainWebsite.Page{Active: true}
	if id := r.PathValue("id"); id != "" {
		existing, err := stores.WebsiteStore.GetPage(ctx, id)
		if err != nil {
			failRequest(w, r, err)
			return
		}
		page = existing
	}

	if r.Method == "GET" {
		renderTemplate(w, r, "admin_page_form.html", map[string]any{"Page": page})
		return
	}
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	page.Name = strings.ToLower(strings.TrimSpace(r.FormValue("Name")))
	page.Title = strings.TrimSpace(r.FormValue("Title"))
	page.Content = r.FormValue("Content")
	page.Active = formBool(r, "Active")
	page.Restricted = formBool(r, "Restricted")
	page.DisplayInMenu = formBool(r, "DisplayInMenu")
	order, err := formInt(r, "MenuOrder", 0)
	if err == nil {
		page.MenuOrder = order
		err = page.Validate()
	}
	if err == nil {
		// names are unique; another page may already hold this one
		if other, lookupErr := stores.WebsiteStore.GetPageByName(ctx, page.Name); lookupErr == nil && other.ID != page.ID {
			err = errors.New("a page with that name already exists")
		}
	}
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			msg = err.Error()
		}
		renderTemplateStatus(w, r, http.StatusBadRequest, "admin_page_form.html", map[string]any{
			"Page":  page,
			"Error": msg,
		})
		return
	}

	if page.ID == "" {
		page.ID = generateID()
	}
	if err := stores.WebsiteStore.SavePage(ctx, page); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/pages", http.StatusSeeOther)
}

// handleAdminPageDelete handles POST /studioadmin/pages/{id}/delete
func handleAdminPageDelete(w http.ResponseWriter, r *http.Request) {
	if err := stores.WebsiteStore.DeletePage(r.Context(), r.PathValue("id")); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/pages", http.StatusSeeOther)
}

// handleAdminAboutSave handles POST /studioadmin/about. An ID edits an existing section.
func handleAdminAboutSave(w http.ResponseWriter, r *http.Request) {
	order, err := formInt(r, "Order", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a := domainWebsite.AboutInfo{
		ID:         r.FormValue("ID"),
		Heading:    strings.TrimSpace(r.FormValue("Heading")),
		Subheading: strings.TrimSpace(r.FormValue("Subheading")),
		Content:    r.FormValue("Content"),
		Order:      order,
	}
	if err := a.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.ID == "" {
		a.ID = generateID()
	}
	if err := stores.WebsiteStore.SaveAbout(r.Context(), a); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/pages", http.StatusSeeOther)
}

// handleAdminAboutDelete handles POST /studioadmin/about/{id}/delete
func handleAdminAboutDelete(w http.ResponseWriter, r *http.Request) {
	if err := stores.WebsiteStore.DeleteAbout(r.Context(), r.PathValue("id")); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/pages", http.StatusSeeOther)
}
