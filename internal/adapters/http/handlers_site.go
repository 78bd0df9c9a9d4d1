package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"studio/internal/adapters/http/middleware"
	"studio/internal/application/projections"
	domainEvent "studio/internal/domain/event"
)

// handleHome handles GET / with the next few workshops.
func handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	workshops, err := projections.QueryGetEventList(r.Context(), projections.GetEventListQuery{
		EventType: domainEvent.TypeWorkshop,
		UserID:    sess.AccountID,
	}, eventQueryDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	upcoming := workshops.Events
	if len(upcoming) > 3 {
		upcoming = upcoming[:3]
	}
	renderTemplate(w, r, "home.html", map[string]any{
		"Workshops": upcoming,
	})
}

// handleAbout handles GET /about
func handleAbout(w http.ResponseWriter, r *http.Request) {
	sections, err := projections.QueryGetAbout(r.Context(), stores.WebsiteStore)
	if err != nil {
		internalError(w, err)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "about.html", map[string]any{"Sections": sections})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sections)
}

// handlePage handles GET /page/{name}. Inactive pages are 404; restricted pages
// send anonymous visitors to log in first.
func handlePage(w http.ResponseWriter, r *http.Request) {
	_, loggedIn := middleware.GetSessionFromContext(r.Context())
	page, err := projections.QueryGetPage(r.Context(), r.PathValue("name"), loggedIn, stores.WebsiteStore)
	if errors.Is(err, projections.ErrLoginRequired) {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
		return
	}
	if err != nil {
		failRequest(w, r, err)
		return
	}
	renderTemplate(w, r, "page.html", map[string]any{"Page": page})
}

// handleTimetable handles GET /timetable
func handleTimetable(w http.ResponseWriter, r *http.Request) {
	days, err := projections.QueryGetTimetable(r.Context(), true, stores.TimetableStore)
	if err != nil {
		internalError(w, err)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "timetable.html", map[string]any{"Days": days})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(days)
}

// handleGallery handles GET /gallery?category=<id>
func handleGallery(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryGetGallery(r.Context(), r.URL.Query().Get("category"), stores.GalleryStore)
	if err != nil {
		internalError(w, err)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "gallery.html", result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
