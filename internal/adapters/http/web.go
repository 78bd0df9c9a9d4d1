package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"time"

	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/http/perf"
	"studio/internal/adapters/payments"
	accountStore "studio/internal/adapters/storage/account"
	activityLogStore "studio/internal/adapters/storage/activitylog"
	bookingStore "studio/internal/adapters/storage/booking"
	eventStore "studio/internal/adapters/storage/event"
	galleryStore "studio/internal/adapters/storage/gallery"
	invoiceStore "studio/internal/adapters/storage/invoice"
	outboxStore "studio/internal/adapters/storage/outbox"
	timetableStore "studio/internal/adapters/storage/timetable"
	voucherStore "studio/internal/adapters/storage/voucher"
	waitingListStore "studio/internal/adapters/storage/waitinglist"
	websiteStore "studio/internal/adapters/storage/website"
	"studio/internal/application/orchestrators"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore     accountStore.Store
	EventStore       eventStore.Store
	BookingStore     bookingStore.Store
	WaitingListStore waitingListStore.Store
	ActivityLogStore activityLogStore.Store
	InvoiceStore     invoiceStore.Store
	VoucherStore     voucherStore.Store
	GiftStore        voucherStore.GiftStore
	TimetableStore   timetableStore.Store
	GalleryStore     galleryStore.Store
	WebsiteStore     websiteStore.Store
	OutboxStore      outboxStore.Store
}

// Services are the collaborators handlers use besides storage.
type Services struct {
	Sessions  middleware.SessionStore // defaults to an in-memory store
	Mailer    orchestrators.Mailer
	Payments  payments.Gateway
	Outbox    *orchestrators.OutboxProcessor
	Studio    orchestrators.StudioConfig
	UploadDir string // gallery images are written here and served under /uploads/
}

// loadCSRFKey reads the CSRF secret from STUDIO_CSRF_KEY (hex-encoded, 32 bytes).
// In production, the key MUST be set. In development, a random key is generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("STUDIO_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("STUDIO_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if isProduction() {
		log.Fatal("STUDIO_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (forms won't survive restart). Set STUDIO_CSRF_KEY for production.")
	return key
}

func isProduction() bool {
	return os.Getenv("STUDIO_ENV") == "production"
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions middleware.SessionStore

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// Mail, payments and studio settings (set by NewMux)
var (
	mailer          orchestrators.Mailer
	paymentGateway  payments.Gateway
	outboxProcessor *orchestrators.OutboxProcessor
	studioConfig    orchestrators.StudioConfig
	uploadDir       = "uploads"
)

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// webhookPath carries its own Stripe signature and is exempt from CSRF.
const webhookPath = "/stripe/webhook"

// NewMux wires HTTP handlers for the app. ctx bounds the rate limiter's sweeper.
func NewMux(ctx context.Context, staticDir string, s *Stores, svc Services, collector *perf.Collector) http.Handler {
	stores = s
	perfCollector = collector
	sessions = svc.Sessions
	if sessions == nil {
		sessions = middleware.NewMemorySessionStore()
	}
	mailer = svc.Mailer
	paymentGateway = svc.Payments
	if paymentGateway == nil {
		paymentGateway = payments.NewNoopGateway()
	}
	outboxProcessor = svc.Outbox
	studioConfig = svc.Studio
	if svc.UploadDir != "" {
		uploadDir = svc.UploadDir
	}
	middleware.SecureCookies = isProduction()

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	registerRoutes(mux)

	csrfKey := loadCSRFKey()

	limiter := middleware.NewRateLimiter(ctx, RateLimitPerSecond, time.Second)

	// Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(middleware.CSRFConfig{
			AuthKey:     csrfKey,
			ExemptPaths: []string{webhookPath},
		}),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}
