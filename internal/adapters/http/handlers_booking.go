package web

import (
	"encoding/json"
	"net/http"

	"studio/internal/adapters/http/middleware"
	"studio/internal/application/orchestrators"
	"studio/internal/application/projections"
)

// handleEvents handles GET /events?type=<event type>&name=<name>&venue=<id>
func handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	q := r.URL.Query()
	query := projections.GetEventListQuery{
		EventType: q.Get("type"),
		Name:      q.Get("name"),
		VenueID:   q.Get("venue"),
		UserID:    sess.AccountID,
		Staff:     middleware.IsStaffOrAdmin(r.Context()),
	}

	result, err := projections.QueryGetEventList(r.Context(), query, eventQueryDeps())
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "events.html", map[string]any{
			"Result": result,
			"Name":   query.Name,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleEventDetail handles GET /events/{slug}
func handleEventDetail(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	result, err := projections.QueryGetEventDetail(r.Context(), projections.GetEventDetailQuery{
		Slug:   r.PathValue("slug"),
		UserID: sess.AccountID,
		Staff:  middleware.IsStaffOrAdmin(r.Context()),
	}, eventQueryDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "event_detail.html", result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleMyBookings handles GET /bookings
func handleMyBookings(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	result, err := projections.QueryGetMyBookings(r.Context(), sess.AccountID, projections.GetMyBookingsDeps{
		Events:   stores.EventStore,
		Bookings: stores.BookingStore,
		Now:      timeNow,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "bookings.html", result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// refuse shows a business-rule refusal: HTML callers get the message page,
// JSON callers a 400. Anything else goes through failRequest.
func refuse(w http.ResponseWriter, r *http.Request, err error) {
	msg, ok := userMessage(err)
	if ok && isHTMLRequest(r) {
		renderTemplateStatus(w, r, http.StatusBadRequest, "message.html", map[string]any{
			"Title":   "Sorry",
			"Message": msg,
			"Back":    safeNext(r.Header.Get("Referer"), "/events"),
		})
		return
	}
	failRequest(w, r, err)
}

// backTo redirects HTML callers to the local page they came from.
func backTo(w http.ResponseWriter, r *http.Request, fallback string) {
	target := safeNext(r.FormValue("next"), "")
	if target == "" {
		if ref := r.Header.Get("Referer"); ref != "" {
			if u, err := r.URL.Parse(ref); err == nil && u.Host == r.Host {
				target = u.RequestURI()
			}
		}
	}
	http.Redirect(w, r, safeNext(target, fallback), http.StatusSeeOther)
}

// handleToggleBooking handles POST /bookings/toggle/{eventID}
// Books the user in, or cancels their open booking.
func handleToggleBooking(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	result, err := orchestrators.ExecuteToggleBooking(r.Context(), orchestrators.ToggleBookingInput{
		UserID:  sess.AccountID,
		EventID: r.PathValue("eventID"),
	}, bookingDeps())
	if err != nil {
		refuse(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		if result.Open && !result.Booking.Paid {
			http.Redirect(w, r, "/checkout", http.StatusSeeOther)
			return
		}
		backTo(w, r, "/bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id":  result.Booking.ID,
		"open":        result.Open,
		"paid":        result.Booking.Paid,
		"spaces_left": result.SpacesLeft,
	})
}

// handleCancelBooking handles POST /bookings/{id}/cancel
func handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	result, err := orchestrators.ExecuteCancelBooking(r.Context(), orchestrators.CancelBookingInput{
		UserID:    sess.AccountID,
		BookingID: r.PathValue("id"),
	}, bookingDeps())
	if err != nil {
		refuse(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		backTo(w, r, "/bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      result.Booking.Status,
		"no_show":     result.Booking.NoShow,
		"late":        result.LateCancel,
		"fee_charged": result.FeeCharged,
		"refunded":    result.Refunded,
	})
}

// handleToggleWaitingList handles POST /waiting-list/toggle/{eventID}
func handleToggleWaitingList(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	onList, err := orchestrators.ExecuteToggleWaitingList(r.Context(), orchestrators.ToggleWaitingListInput{
		UserID:  sess.AccountID,
		EventID: r.PathValue("eventID"),
	}, bookingDeps())
	if err != nil {
		refuse(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		backTo(w, r, "/events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on_waiting_list": onList})
}
