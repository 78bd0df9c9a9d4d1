package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"studio/internal/adapters/http/middleware"
	"studio/internal/application/listutil"
	"studio/internal/application/orchestrators"
	"studio/internal/application/projections"
	domainBooking "studio/internal/domain/booking"
	domainEvent "studio/internal/domain/event"
	domainInvoice "studio/internal/domain/invoice"
	domainVoucher "studio/internal/domain/voucher"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// refusals are sentinel errors whose text is shown to the user as is.
var refusals = []error{
	orchestrators.ErrOutstandingFees,
	orchestrators.ErrEventPast,
	orchestrators.ErrInvalidAttendance,
	domainBooking.ErrAlreadyCancelled,
	domainEvent.ErrAlreadyCancelled,
}

// userMessage returns the message of a business-rule refusal.
func userMessage(err error) (string, bool) {
	var uerr *orchestrators.UserError
	if errors.As(err, &uerr) {
		return uerr.Msg, true
	}
	for _, refusal := range refusals {
		if errors.Is(err, refusal) {
			return refusal.Error(), true
		}
	}
	return "", false
}

// isNotFound matches store misses and the domain not-found sentinels.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, domainEvent.ErrNotFound) ||
		errors.Is(err, domainInvoice.ErrNotFound) ||
		errors.Is(err, domainVoucher.ErrNotFound) ||
		errors.Is(err, projections.ErrPageNotFound)
}

// failRequest maps an orchestrator error onto a response: refusals are 400 with
// their message, misses are 404 and anything else is a logged 500.
func failRequest(w http.ResponseWriter, r *http.Request, err error) {
	if msg, ok := userMessage(err); ok {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if errors.Is(err, orchestrators.ErrNotYourBooking) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if isNotFound(err) {
		http.NotFound(w, r)
		return
	}
	internalError(w, err)
}

// isForm reports whether the body is a urlencoded or multipart form.
func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

var templatesDir = "internal/adapters/http/templates"

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

// safeNext returns target when it is a local path, else fallback.
func safeNext(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	if u, err := url.Parse(target); err != nil || u.Host != "" {
		return fallback
	}
	return target
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	renderTemplateStatus(w, r, http.StatusOK, templateName, data)
}

// renderTemplateStatus renders layout.html plus templateName with the given status.
func renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	role, email, name := "", "", ""
	if ok {
		role, email, name = sess.Role, sess.Email, sess.Name
	}

	menu, err := projections.QueryGetMenu(r.Context(), stores.WebsiteStore)
	if err != nil {
		slog.Warn("menu_unavailable", "error", err)
	}

	funcMap := template.FuncMap{
		"currentRole":  func() string { return role },
		"currentEmail": func() string { return email },
		"currentName":  func() string { return name },
		"isLoggedIn":   func() bool { return role != "" },
		"isStaff":      func() bool { return role == "admin" || role == "staff" },
		"csrfToken":    func() string { return csrf.Token(r) },
		"menu":         func() []projections.MenuItem { return menu },
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
		"pence": domainEvent.FormatPence,
		"london": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.In(domainEvent.London).Format(layout)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"pageQuery": func(p listutil.ListParams, page int) template.URL {
			return template.URL(p.Encode(page))
		},
		// sortQuery links a column header: first click ascending, second click flips.
		"sortQuery": func(p listutil.ListParams, key string) template.URL {
			p.Sort = listutil.SortParams{Sort: key, Desc: p.Sort.Sort == key && !p.Sort.Desc}
			return template.URL(p.Encode(1))
		},
	}

	layoutPath := filepath.Join(templatesDir, "layout.html")
	pagePath := filepath.Join(templatesDir, templateName)
	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFiles(layoutPath, pagePath)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// --- deps ---

func bookingDeps() orchestrators.BookingDeps {
	return orchestrators.BookingDeps{
		Accounts:    stores.AccountStore,
		Events:      stores.EventStore,
		Bookings:    stores.BookingStore,
		WaitingList: stores.WaitingListStore,
		Invoices:    stores.InvoiceStore,
		Payments:    paymentGateway,
		ActivityLog: stores.ActivityLogStore,
		Mailer:      mailer,
		Studio:      studioConfig,
		GenerateID:  generateID,
		Now:         timeNow,
	}
}

func paymentDeps() orchestrators.PaymentDeps {
	return orchestrators.PaymentDeps{
		Accounts:    stores.AccountStore,
		Events:      stores.EventStore,
		Bookings:    stores.BookingStore,
		Gifts:       stores.GiftStore,
		Vouchers:    stores.VoucherStore,
		Invoices:    stores.InvoiceStore,
		Payments:    paymentGateway,
		ActivityLog: stores.ActivityLogStore,
		Mailer:      mailer,
		Studio:      studioConfig,
		GenerateID:  generateID,
		Now:         timeNow,
	}
}

func eventDeps() orchestrators.EventDeps {
	return orchestrators.EventDeps{
		Events:      stores.EventStore,
		Bookings:    stores.BookingStore,
		WaitingList: stores.WaitingListStore,
		Accounts:    stores.AccountStore,
		Invoices:    stores.InvoiceStore,
		Payments:    paymentGateway,
		ActivityLog: stores.ActivityLogStore,
		Mailer:      mailer,
		GenerateID:  generateID,
		Now:         timeNow,
	}
}

func eventQueryDeps() projections.EventQueryDeps {
	return projections.EventQueryDeps{
		Events:      stores.EventStore,
		Bookings:    stores.BookingStore,
		WaitingList: stores.WaitingListStore,
		Now:         timeNow,
	}
}

func registerQueryDeps() projections.RegisterQueryDeps {
	return projections.RegisterQueryDeps{
		Accounts:    stores.AccountStore,
		Events:      stores.EventStore,
		Bookings:    stores.BookingStore,
		WaitingList: stores.WaitingListStore,
		Now:         timeNow,
	}
}

func createAccountDeps() orchestrators.CreateAccountDeps {
	return orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		ActivityLog:  stores.ActivityLogStore,
		GenerateID:   generateID,
		Now:          timeNow,
	}
}

// --- auth ---

// startSession creates a session for a logged-in account and sets its cookie.
func startSession(w http.ResponseWriter, r *http.Request, res orchestrators.LoginResult) error {
	sess := middleware.Session{
		AccountID:              res.AccountID,
		Email:                  res.Email,
		Role:                   res.Role,
		CreatedAt:              timeNow(),
		PasswordChangeRequired: res.PasswordChangeRequired,
	}
	if acct, err := stores.AccountStore.GetByID(r.Context(), res.AccountID); err == nil {
		sess.Name = acct.DisplayName()
	}
	token, err := sessions.Create(r.Context(), sess)
	if err != nil {
		return err
	}
	middleware.SetSessionCookie(w, token)
	return nil
}

// handleLogin handles GET (form) and POST (authenticate) for /login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), "/")

	if r.Method == "GET" {
		if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		renderTemplate(w, r, "login.html", map[string]any{
			"Next": next,
		})
		return
	}

	if r.Method == "POST" {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		next = safeNext(r.FormValue("Next"), next)

		input := orchestrators.LoginInput{
			Email:    r.FormValue("Email"),
			Password: r.FormValue("Password"),
		}
		deps := orchestrators.LoginDeps{
			AccountStore: stores.AccountStore,
			Now:          timeNow,
		}

		result, err := orchestrators.ExecuteLogin(r.Context(), input, deps)
		if err != nil {
			renderTemplateStatus(w, r, http.StatusUnauthorized, "login.html", map[string]any{
				"Next":  next,
				"Email": input.Email,
				"Error": err.Error(),
			})
			return
		}

		if err := startSession(w, r, result); err != nil {
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
		if result.PasswordChangeRequired {
			http.Redirect(w, r, "/change-password", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleSignup handles GET (form) and POST (create account) for /signup
func handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		renderTemplate(w, r, "signup.html", map[string]any{})
		return
	}

	if r.Method == "POST" {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		input := orchestrators.CreateAccountInput{
			Email:     r.FormValue("Email"),
			FirstName: r.FormValue("FirstName"),
			LastName:  r.FormValue("LastName"),
			Password:  r.FormValue("Password"),
		}
		form := map[string]any{
			"Email":     input.Email,
			"FirstName": input.FirstName,
			"LastName":  input.LastName,
		}
		if input.Password != r.FormValue("ConfirmPassword") {
			form["Error"] = "Passwords do not match"
			renderTemplateStatus(w, r, http.StatusBadRequest, "signup.html", form)
			return
		}

		acct, err := orchestrators.ExecuteCreateAccount(r.Context(), input, createAccountDeps())
		if err != nil {
			msg, ok := userMessage(err)
			if !ok {
				internalError(w, err)
				return
			}
			form["Error"] = msg
			renderTemplateStatus(w, r, http.StatusBadRequest, "signup.html", form)
			return
		}

		if err := startSession(w, r, orchestrators.LoginResult{AccountID: acct.ID, Email: acct.Email, Role: acct.Role}); err != nil {
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/events", http.StatusSeeOther)
		return
	}

	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleLogout handles POST /logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		sessions.Delete(r.Context(), token)
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleChangePassword handles GET (form) and POST (update) for /change-password
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if r.Method == "GET" {
		renderTemplate(w, r, "change_password.html", map[string]any{
			"Forced": session.PasswordChangeRequired,
		})
		return
	}

	if r.Method == "POST" {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Form error", http.StatusBadRequest)
			return
		}

		if r.FormValue("NewPassword") != r.FormValue("ConfirmPassword") {
			renderTemplate(w, r, "change_password.html", map[string]any{
				"Forced": session.PasswordChangeRequired,
				"Error":  "New passwords do not match",
			})
			return
		}

		input := orchestrators.ChangePasswordInput{
			AccountID:       session.AccountID,
			CurrentPassword: r.FormValue("CurrentPassword"),
			NewPassword:     r.FormValue("NewPassword"),
		}
		deps := orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore}

		if err := orchestrators.ExecuteChangePassword(r.Context(), input, deps); err != nil {
			msg, ok := userMessage(err)
			if !ok {
				internalError(w, err)
				return
			}
			renderTemplate(w, r, "change_password.html", map[string]any{
				"Forced": session.PasswordChangeRequired,
				"Error":  msg,
			})
			return
		}

		if token := middleware.SessionToken(r); token != "" {
			session.PasswordChangeRequired = false
			sessions.Update(r.Context(), token, session)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.WriteHeader(http.StatusMethodNotAllowed)
}
