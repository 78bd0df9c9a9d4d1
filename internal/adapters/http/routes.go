package web

import (
	"net/http"

	"studio/internal/adapters/http/middleware"
	domainAccount "studio/internal/domain/account"
)

var (
	requireStaff = middleware.RequireRole(domainAccount.RoleAdmin, domainAccount.RoleStaff)
	requireAdmin = middleware.RequireRole(domainAccount.RoleAdmin)
)

func authed(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
func staff(h http.HandlerFunc) http.Handler  { return requireStaff(h) }
func admin(h http.HandlerFunc) http.Handler  { return requireAdmin(h) }

// registerRoutes maps every path to its handler. Handlers registered without a
// method serve both the form (GET) and its submission (POST).
func registerRoutes(mux *http.ServeMux) {
	// Accounts
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/signup", handleSignup)
	mux.HandleFunc("POST /logout", handleLogout)
	mux.Handle("/change-password", authed(handleChangePassword))

	// Public site
	mux.HandleFunc("GET /{$}", handleHome)
	mux.HandleFunc("GET /about", handleAbout)
	mux.HandleFunc("GET /page/{name}", handlePage)
	mux.HandleFunc("GET /timetable", handleTimetable)
	mux.HandleFunc("GET /gallery", handleGallery)

	// Events and bookings
	mux.HandleFunc("GET /events", handleEvents)
	mux.HandleFunc("GET /events/{slug}", handleEventDetail)
	mux.Handle("GET /bookings", authed(handleMyBookings))
	mux.Handle("POST /bookings/toggle/{eventID}", authed(handleToggleBooking))
	mux.Handle("POST /bookings/{id}/cancel", authed(handleCancelBooking))
	mux.Handle("POST /waiting-list/toggle/{eventID}", authed(handleToggleWaitingList))

	// Payments
	mux.HandleFunc("/gift-vouchers", handleGiftVouchers)
	mux.HandleFunc("GET /gift-vouchers/{id}", handleGiftVoucherDetail)
	mux.HandleFunc("/checkout", handleCheckout)
	mux.HandleFunc("GET /payment/complete", handlePaymentComplete)
	mux.HandleFunc("POST "+webhookPath, handleStripeWebhook)

	// Studio admin: registers and attendance
	mux.Handle("GET /studioadmin/registers", staff(handleRegisterList))
	mux.Handle("GET /studioadmin/registers/{eventID}", staff(handleRegister))
	mux.Handle("POST /studioadmin/registers/{eventID}/add", staff(handleRegisterAddBooking))
	mux.Handle("POST /studioadmin/bookings/{id}/attended", staff(handleToggleAttended))
	mux.Handle("GET /studioadmin/waiting-list/{eventID}", staff(handleAdminWaitingList))
	mux.Handle("POST /studioadmin/waiting-list/{eventID}/remove", staff(handleAdminWaitingListRemove))

	// Studio admin: fees
	mux.Handle("GET /studioadmin/fees", staff(handleOutstandingFees))
	mux.Handle("GET /studioadmin/users/{id}/fees", staff(handleUserFees))
	mux.Handle("GET /studioadmin/users/{id}/total-fees", staff(handleUserTotalFees))
	mux.Handle("POST /studioadmin/bookings/{id}/fee-paid", staff(handleToggleFeePaid))
	mux.Handle("POST /studioadmin/bookings/{id}/fee-incurred", staff(handleToggleFeeIncurred))
	mux.Handle("GET /studioadmin/bookings/{id}/payment-status", staff(handlePaymentStatus))

	// Studio admin: users and activity log
	mux.Handle("GET /studioadmin/users", staff(handleUserList))
	mux.Handle("GET /studioadmin/activitylog", staff(handleActivityLog))

	// Studio admin: events and timetable
	mux.Handle("GET /studioadmin/events", staff(handleAdminEvents))
	mux.Handle("/studioadmin/events/new", staff(handleAdminEventForm))
	mux.Handle("/studioadmin/events/{id}/edit", staff(handleAdminEventForm))
	mux.Handle("POST /studioadmin/events/{id}/cancel", staff(handleAdminCancelEvent))
	mux.Handle("/studioadmin/timetable/upload", staff(handleUploadTimetable))
	mux.Handle("GET /studioadmin/timetable", staff(handleAdminTimetable))
	mux.Handle("/studioadmin/timetable/sessions/new", staff(handleAdminSessionForm))
	mux.Handle("/studioadmin/timetable/sessions/{id}/edit", staff(handleAdminSessionForm))
	mux.Handle("POST /studioadmin/timetable/sessions/{id}/delete", staff(handleAdminSessionDelete))
	mux.Handle("POST /studioadmin/timetable/venues", staff(handleAdminVenueSave))
	mux.Handle("POST /studioadmin/timetable/venues/{id}/delete", staff(handleAdminVenueDelete))
	mux.Handle("POST /studioadmin/timetable/session-types", staff(handleAdminSessionTypeSave))
	mux.Handle("POST /studioadmin/timetable/session-types/{id}/delete", staff(handleAdminSessionTypeDelete))

	// Studio admin: website content
	mux.Handle("GET /studioadmin/gallery", staff(handleAdminGallery))
	mux.Handle("POST /studioadmin/gallery/categories", staff(handleAdminCategorySave))
	mux.Handle("POST /studioadmin/gallery/categories/{id}/delete", staff(handleAdminCategoryDelete))
	mux.Handle("POST /studioadmin/gallery/images", staff(handleAdminImageUpload))
	mux.Handle("POST /studioadmin/gallery/images/{id}", staff(handleAdminImageSave))
	mux.Handle("POST /studioadmin/gallery/images/{id}/delete", staff(handleAdminImageDelete))
	mux.Handle("GET /studioadmin/pages", staff(handleAdminPages))
	mux.Handle("/studioadmin/pages/new", staff(handleAdminPageForm))
	mux.Handle("/studioadmin/pages/{id}/edit", staff(handleAdminPageForm))
	mux.Handle("POST /studioadmin/pages/{id}/delete", staff(handleAdminPageDelete))
	mux.Handle("POST /studioadmin/about", staff(handleAdminAboutSave))
	mux.Handle("POST /studioadmin/about/{id}/delete", staff(handleAdminAboutDelete))

	// Operations
	mux.Handle("GET /studioadmin/outbox", admin(handleAdminOutbox))
	mux.Handle("POST /studioadmin/outbox/{id}/{action}", admin(handleAdminOutboxAction))
	mux.Handle("GET /studioadmin/perf", admin(handleAdminPerf))
}
