package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	storageEvent "studio/internal/adapters/storage/event"
	"studio/internal/application/orchestrators"
	domainEvent "studio/internal/domain/event"
	domainTimetable "studio/internal/domain/timetable"
)

// datetimeLocal is the layout of <input type="datetime-local">, read as London time.
const datetimeLocal = "2006-01-02T15:04"

var errBadForm = errors.New("invalid form submission")

// formError wraps a form field problem as a refusal shown to the user.
func formError(field string, err error) error {
	return &orchestrators.UserError{Msg: fmt.Sprintf("%s: %v", field, err), Err: errBadForm}
}

func formInt(r *http.Request, field string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, formError(field, errors.New("must be a whole number"))
	}
	return n, nil
}

func formPence(r *http.Request, field string) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	p, err := domainEvent.ParsePence(raw)
	if err != nil {
		return 0, formError(field, err)
	}
	return p, nil
}

func formBool(r *http.Request, field string) bool {
	switch r.FormValue(field) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// --- events ---

// handleAdminEvents handles GET /studioadmin/events?type=<event type>&past=1
func handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storageEvent.ListFilter{
		EventType:        q.Get("type"),
		IncludeCancelled: true,
	}
	if q.Get("past") == "" {
		now := timeNow().In(domainEvent.London)
		filter.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, domainEvent.London).UTC()
	}
	events, err := stores.EventStore.List(r.Context(), filter)
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_events.html", map[string]any{
			"Events":    events,
			"EventType": filter.EventType,
			"Past":      q.Get("past") != "",
			"Types":     domainEvent.ValidTypes,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// parseEventForm overlays the submitted fields onto ev.
func parseEventForm(r *http.Request, ev *domainEvent.Event) error {
	ev.Name = strings.TrimSpace(r.FormValue("Name"))
	ev.EventType = r.FormValue("EventType")
	ev.Description = r.FormValue("Description")
	ev.VenueID = r.FormValue("VenueID")

	date, err := time.ParseInLocation(datetimeLocal, r.FormValue("Date"), domainEvent.London)
	if err != nil {
		return formError("Date", errors.New("enter a date and time"))
	}
	ev.Date = date.UTC()

	if ev.MaxParticipants, err = formInt(r, "MaxParticipants", domainEvent.DefaultMaxParticipants); err != nil {
		return err
	}
	if ev.CancellationPeriod, err = formInt(r, "CancellationPeriod", domainEvent.DefaultCancellationPeriod); err != nil {
		return err
	}
	if ev.Cost, err = formPence(r, "Cost"); err != nil {
		return err
	}
	if ev.CancellationFee, err = formPence(r, "CancellationFee"); err != nil {
		return err
	}
	ev.ShowOnSite = formBool(r, "ShowOnSite")
	ev.EmailStudioWhenBooked = formBool(r, "EmailStudioWhenBooked")
	ev.AllowBookingCancellation = formBool(r, "AllowBookingCancellation")
	ev.MembersOnly = formBool(r, "MembersOnly")
	return nil
}

// handleAdminEventForm handles GET/POST for /studioadmin/events/new and /studioadmin/events/{id}/edit
func handleAdminEventForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev := domainEvent.New("", "", domainEvent.TypeWorkshop, time.Time{})
	if id := r.PathValue("id"); id != "" {
		existing, err := stores.EventStore.GetByID(ctx, id)
		if err != nil {
			failRequest(w, r, err)
			return
		}
		ev = existing
	}
	venues, err := stores.TimetableStore.ListVenues(ctx)
	if err != nil {
		internalError(w, err)
		return
	}
	data := map[string]any{
		"Event":  ev,
		"Venues": venues,
		"Types":  domainEvent.ValidTypes,
	}

	if r.Method == "GET" {
		renderTemplate(w, r, "admin_event_form.html", data)
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
	saved := ev
	err = parseEventForm(r, &ev)
	if err == nil {
		saved, err = orchestrators.ExecuteSaveEvent(ctx, orchestrators.SaveEventInput{Event: ev, AdminID: adminID(r)}, eventDeps())
	}
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(w, err)
			return
		}
		data["Event"] = ev
		data["Error"] = msg
		renderTemplateStatus(w, r, http.StatusBadRequest, "admin_event_form.html", data)
		return
	}
	http.Redirect(w, r, "/studioadmin/events?type="+saved.EventType, http.StatusSeeOther)
}

// handleAdminCancelEvent handles POST /studioadmin/events/{id}/cancel
func handleAdminCancelEvent(w http.ResponseWriter, r *http.Request) {
	result, err := orchestrators.ExecuteCancelEvent(r.Context(), orchestrators.CancelEventInput{
		EventID: r.PathValue("id"),
		AdminID: adminID(r),
	}, eventDeps())
	if err != nil {
		refuse(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		msg := fmt.Sprintf("%d booking(s) cancelled, %d refunded (£%s).",
			result.CancelledBookings, result.Refunded, domainEvent.FormatPence(result.RefundTotal))
		if len(result.RefundFailures) > 0 {
			msg += " Some refunds failed and have been reported to support."
		}
		renderTemplate(w, r, "message.html", map[string]any{
			"Title":   "Event cancelled",
			"Message": msg,
			"Back":    "/studioadmin/events",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cancelled_bookings": result.CancelledBookings,
		"refunded":           result.Refunded,
		"refund_total":       result.RefundTotal,
		"refund_failures":    result.RefundFailures,
	})
}

// --- timetable ---

// handleUploadTimetable handles GET (form) and POST (generate events) for /studioadmin/timetable/upload
func handleUploadTimetable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := stores.TimetableStore.ListSessions(ctx, false)
	if err != nil {
		internalError(w, err)
		return
	}
	data := map[string]any{"Sessions": sessions}

	if r.Method == "GET" {
		renderTemplate(w, r, "admin_timetable_upload.html", data)
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

	input := orchestrators.UploadTimetableInput{
		SessionIDs: r.Form["SessionID"],
		ShowOnSite: formBool(r, "ShowOnSite"),
		AdminID:    adminID(r),
	}
	start, err1 := time.ParseInLocation("2006-01-02", r.FormValue("Start"), domainEvent.London)
	end, err2 := time.ParseInLocation("2006-01-02", r.FormValue("End"), domainEvent.London)
	if err1 != nil || err2 != nil {
		data["Error"] = "Enter a start and end date"
		renderTemplateStatus(w, r, http.StatusBadRequest, "admin_timetable_upload.html", data)
		return
	}
	input.Start, input.End = start, end

	result, err := orchestrators.ExecuteUploadTimetable(ctx, input, orchestrators.UploadTimetableDeps{
		Timetable:   stores.TimetableStore,
		Events:      stores.EventStore,
		Accounts:    stores.AccountStore,
		ActivityLog: stores.ActivityLogStore,
		GenerateID:  generateID,
		Now:         timeNow,
	})
	if err != nil {
		if msg, ok := userMessage(err); ok {
			data["Error"] = msg
			renderTemplateStatus(w, r, http.StatusBadRequest, "admin_timetable_upload.html", data)
			return
		}
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		data["Result"] = result
		renderTemplate(w, r, "admin_timetable_upload.html", data)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"created":    len(result.Created),
		"existing":   len(result.Existing),
		"duplicates": len(result.Duplicates),
	})
}

// handleAdminTimetable handles GET /studioadmin/timetable
func handleAdminTimetable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := stores.TimetableStore.ListSessions(ctx, false)
	if err != nil {
		internalError(w, err)
		return
	}
	venues, err := stores.TimetableStore.ListVenues(ctx)
	if err != nil {
		internalError(w, err)
		return
	}
	types, err := stores.TimetableStore.ListSessionTypes(ctx)
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_timetable.html", map[string]any{
			"Sessions":     sessions,
			"Venues":       venues,
			"SessionTypes": types,
			"DayNames":     domainTimetable.DayNames,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":      sessions,
		"venues":        venues,
		"session_types": types,
	})
}

func parseSessionForm(r *http.Request, s *domainTimetable.Session) error {
	s.Name = strings.TrimSpace(r.FormValue("Name"))
	s.Level = strings.TrimSpace(r.FormValue("Level"))
	s.Day = r.FormValue("Day")
	s.StartTime = r.FormValue("StartTime")
	s.EndTime = r.FormValue("EndTime")
	s.SessionTypeID = r.FormValue("SessionTypeID")
	s.VenueID = r.FormValue("VenueID")

	var err error
	if s.MaxParticipants, err = formInt(r, "MaxParticipants", domainEvent.DefaultMaxParticipants); err != nil {
		return err
	}
	if s.CancellationPeriod, err = formInt(r, "CancellationPeriod", domainEvent.DefaultCancellationPeriod); err != nil {
		return err
	}
	if s.Cost, err = formPence(r, "Cost"); err != nil {
		return err
	}
	if s.AltCost, err = formPence(r, "AltCost"); err != nil {
		return err
	}
	if s.CancellationFee, err = formPence(r, "CancellationFee"); err != nil {
		return err
	}
	s.MembersOnly = formBool(r, "MembersOnly")
	s.ShowOnTimetablePage = formBool(r, "ShowOnTimetablePage")
	return nil
}

// handleAdminSessionForm handles GET/POST for /studioadmin/timetable/sessions/new and .../{id}/edit
func handleAdminSessionForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := domainTimetable.Session{
		MaxParticipants:     domainEvent.DefaultMaxParticipants,
		CancellationPeriod:  domainEvent.DefaultCancellationPeriod,
		ShowOnTimetablePage: true,
	}
	if id := r.PathValue("id"); id != "" {
		existing, err := stores.TimetableStore.GetSession(ctx, id)
		if err != nil {
			failRequest(w, r, err)
			return
		}
		session = existing
	}
	venues, err := stores.TimetableStore.ListVenues(ctx)
	if err != nil {
		internalError(w, err)
		return
	}
	types, err := stores.TimetableStore.ListSessionTypes(ctx)
	if err != nil {
		internalError(w, err)
		return
	}
	data := map[string]any{
		"Session":      session,
		"Venues":       venues,
		"SessionTypes": types,
		"Days":         domainTimetable.ValidDays,
		"DayNames":     domainTimetable.DayNames,
	}

	if r.Method == "GET" {
		renderTemplate(w, r, "admin_session_form.html", data)
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

	formErr := parseSessionForm(r, &session)
	if formErr == nil {
		formErr = session.Validate()
	}
	if formErr == nil {
		st, err := stores.TimetableStore.GetSessionType(ctx, session.SessionTypeID)
		if err != nil {
			formErr = domainTimetable.ErrEmptySessionType
		} else {
			session.ApplyTypeRules(st)
		}
	}
	if formErr != nil {
		data["Session"] = session
		data["Error"] = formErr.Error()
		renderTemplateStatus(w, r, http.StatusBadRequest, "admin_session_form.html", data)
		return
	}

	if session.ID == "" {
		session.ID = generateID()
	}
	if err := stores.TimetableStore.SaveSession(ctx, session); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}

// handleAdminSessionDelete handles POST /studioadmin/timetable/sessions/{id}/delete
func handleAdminSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := stores.TimetableStore.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}

// handleAdminVenueSave handles POST /studioadmin/timetable/venues. An ID edits an existing venue.
func handleAdminVenueSave(w http.ResponseWriter, r *http.Request) {
	v := domainTimetable.Venue{
		ID:           r.FormValue("ID"),
		Name:         strings.TrimSpace(r.FormValue("Name")),
		Abbreviation: strings.TrimSpace(r.FormValue("Abbreviation")),
		Address:      r.FormValue("Address"),
	}
	if err := v.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if v.ID == "" {
		v.ID = generateID()
	}
	if err := stores.TimetableStore.SaveVenue(r.Context(), v); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}

// handleAdminVenueDelete handles POST /studioadmin/timetable/venues/{id}/delete
func handleAdminVenueDelete(w http.ResponseWriter, r *http.Request) {
	if err := stores.TimetableStore.DeleteVenue(r.Context(), r.PathValue("id")); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}

// handleAdminSessionTypeSave handles POST /studioadmin/timetable/session-types
func handleAdminSessionTypeSave(w http.ResponseWriter, r *http.Request) {
	st := domainTimetable.SessionType{
		ID:          r.FormValue("ID"),
		Name:        strings.TrimSpace(r.FormValue("Name")),
		Description: r.FormValue("Description"),
	}
	if err := st.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if st.ID == "" {
		st.ID = generateID()
	}
	if err := stores.TimetableStore.SaveSessionType(r.Context(), st); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}

// handleAdminSessionTypeDelete handles POST /studioadmin/timetable/session-types/{id}/delete
func handleAdminSessionTypeDelete(w http.ResponseWriter, r *http.Request) {
	if err := stores.TimetableStore.DeleteSessionType(r.Context(), r.PathValue("id")); err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/studioadmin/timetable", http.StatusSeeOther)
}
