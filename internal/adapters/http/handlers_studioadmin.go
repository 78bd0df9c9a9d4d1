package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"studio/internal/adapters/http/middleware"
	"studio/internal/application/listutil"
	"studio/internal/application/orchestrators"
	"studio/internal/application/projections"
	domainAccount "studio/internal/domain/account"
	domainEvent "studio/internal/domain/event"
)

// adminID is the staff member acting on an admin route. The route middleware
// guarantees a session.
func adminID(r *http.Request) string {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	return sess.AccountID
}

// --- registers ---

// handleRegisterList handles GET /studioadmin/registers?type=<event type>&show_all=1
func handleRegisterList(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	if eventType == "" {
		eventType = domainEvent.TypeRegularSession
	}
	showAll := r.URL.Query().Get("show_all") != ""

	items, err := projections.QueryGetRegisterList(r.Context(), eventType, showAll, registerQueryDeps())
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_registers.html", map[string]any{
			"Items":     items,
			"EventType": eventType,
			"ShowAll":   showAll,
			"Types":     domainEvent.ValidTypes,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// handleRegister handles GET /studioadmin/registers/{eventID}?status=OPEN|CANCELLED|ALL
func handleRegister(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	result, err := projections.QueryGetRegister(r.Context(), r.PathValue("eventID"), status, registerQueryDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_register.html", result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleRegisterAddBooking handles POST /studioadmin/registers/{eventID}/add
func handleRegisterAddBooking(w http.ResponseWriter, r *http.Request) {
	input := orchestrators.RegisterAddBookingInput{}
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input.UserID = r.FormValue("UserID")
	} else if err := strictDecode(r, &input); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	input.EventID = r.PathValue("eventID")
	input.AdminID = adminID(r)
	if input.UserID == "" {
		http.Error(w, "UserID is required", http.StatusBadRequest)
		return
	}

	b, err := orchestrators.ExecuteRegisterAddBooking(r.Context(), input, bookingDeps())
	if err != nil {
		refuse(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		http.Redirect(w, r, "/studioadmin/registers/"+input.EventID, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": b.ID, "status": b.Status})
}

// handleToggleAttended handles POST /studioadmin/bookings/{id}/attended
// The register page calls this with attendance=attended|no-show and updates
// the row from the JSON reply.
func handleToggleAttended(w http.ResponseWriter, r *http.Request) {
	attendance := r.FormValue("attendance")
	result, err := orchestrators.ExecuteToggleAttended(r.Context(), orchestrators.ToggleAttendedInput{
		BookingID:  r.PathValue("id"),
		Attendance: attendance,
		AdminID:    adminID(r),
	}, bookingDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- waiting list ---

// handleAdminWaitingList handles GET /studioadmin/waiting-list/{eventID}
func handleAdminWaitingList(w http.ResponseWriter, r *http.Request) {
	ev, rows, err := projections.QueryGetWaitingList(r.Context(), r.PathValue("eventID"), registerQueryDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_waiting_list.html", map[string]any{
			"Event": ev,
			"Rows":  rows,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// handleAdminWaitingListRemove handles POST /studioadmin/waiting-list/{eventID}/remove
func handleAdminWaitingListRemove(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	userID := r.FormValue("UserID")
	if userID == "" {
		http.Error(w, "UserID is required", http.StatusBadRequest)
		return
	}
	err := orchestrators.ExecuteRemoveFromWaitingList(r.Context(), orchestrators.RemoveFromWaitingListInput{
		UserID:  userID,
		EventID: eventID,
	}, bookingDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}

	if isHTMLRequest(r) {
		http.Redirect(w, r, "/studioadmin/waiting-list/"+eventID, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- fees ---

func feesQueryDeps() projections.FeesQueryDeps {
	return projections.FeesQueryDeps{
		Accounts: stores.AccountStore,
		Events:   stores.EventStore,
		Bookings: stores.BookingStore,
	}
}

// handleOutstandingFees handles GET /studioadmin/fees
func handleOutstandingFees(w http.ResponseWriter, r *http.Request) {
	users, err := projections.QueryGetOutstandingFees(r.Context(), feesQueryDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_fees.html", map[string]any{"Users": users})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// handleUserFees handles GET /studioadmin/users/{id}/fees
func handleUserFees(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryGetUserFees(r.Context(), r.PathValue("id"), feesQueryDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_user_fees.html", result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleUserTotalFees handles GET /studioadmin/users/{id}/total-fees
func handleUserTotalFees(w http.ResponseWriter, r *http.Request) {
	owing, total, err := orchestrators.OutstandingFeesForUser(r.Context(), stores.BookingStore, stores.EventStore, r.PathValue("id"))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_has_outstanding_fees": owing,
		"outstanding_fees_total":    "£" + domainEvent.FormatPence(total),
	})
}

// handleToggleFeePaid handles POST /studioadmin/bookings/{id}/fee-paid
func handleToggleFeePaid(w http.ResponseWriter, r *http.Request) {
	b, err := orchestrators.ExecuteToggleFeePaid(r.Context(), orchestrators.ToggleFeeInput{
		BookingID: r.PathValue("id"),
		AdminID:   adminID(r),
	}, bookingDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}
	ev, err := stores.EventStore.GetByID(r.Context(), b.EventID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fee_paid": b.CancellationFeePaid,
		"fee_text": b.FeeText(ev),
	})
}

// handleToggleFeeIncurred handles POST /studioadmin/bookings/{id}/fee-incurred
func handleToggleFeeIncurred(w http.ResponseWriter, r *http.Request) {
	status, err := orchestrators.ExecuteToggleFeeIncurred(r.Context(), orchestrators.ToggleFeeInput{
		BookingID: r.PathValue("id"),
		AdminID:   adminID(r),
	}, bookingDeps())
	if err != nil {
		failRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fee_status": status})
}

// handlePaymentStatus handles GET /studioadmin/bookings/{id}/payment-status
func handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	b, err := stores.BookingStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		failRequest(w, r, err)
		return
	}
	ev, err := stores.EventStore.GetByID(r.Context(), b.EventID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paid":     b.Paid,
		"status":   b.Status,
		"fee_text": b.FeeText(ev),
	})
}

// --- users and activity log ---

// handleUserList handles GET /studioadmin/users?initial=<letter>&role=<role>&q=<search>&sort=<key>&dir=<asc|desc>&page=<n>
func handleUserList(w http.ResponseWriter, r *http.Request) {
	params := listutil.ParseListParams(r.URL.Query(), projections.UserListSpec)
	query := projections.NewUserListQuery(params)
	result, err := projections.QueryGetUserList(r.Context(), query, projections.GetUserListDeps{
		Accounts: stores.AccountStore,
		Bookings: stores.BookingStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_users.html", map[string]any{
			"Result":   result,
			"Alphabet": projections.Alphabet,
			"Roles":    domainAccount.ValidRoles,
			"Params":   params,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleActivityLog handles GET /studioadmin/activitylog?q=<search>&day=<YYYY-MM-DD>&housekeeping=1&dir=<asc|desc>
func handleActivityLog(w http.ResponseWriter, r *http.Request) {
	params := listutil.ParseListParams(r.URL.Query(), projections.ActivityLogSpec)
	query := projections.GetActivityLogQuery{
		Search:           params.Filter.Search,
		ShowHousekeeping: params.Filter.Get("housekeeping") != "",
		Oldest:           !params.Sort.Desc,
		Page:             params.Page,
	}
	if raw := params.Filter.Get("day"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		query.Day = day
	}

	result, err := projections.QueryGetActivityLog(r.Context(), query, stores.ActivityLogStore)
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_activitylog.html", map[string]any{
			"Result": result,
			"Query":  query,
			"Params": params,
			"Day":    params.Filter.Get("day"),
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
