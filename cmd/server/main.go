package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	emailPkg "studio/internal/adapters/email"
	web "studio/internal/adapters/http"
	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/http/perf"
	"studio/internal/adapters/payments"
	"studio/internal/adapters/storage"
	accountStore "studio/internal/adapters/storage/account"
	activityLogStore "studio/internal/adapters/storage/activitylog"
	bookingStore "studio/internal/adapters/storage/booking"
	eventStore "studio/internal/adapters/storage/event"
	galleryStore "studio/internal/adapters/storage/gallery"
	invoiceStore "studio/internal/adapters/storage/invoice"
	outboxStorePkg "studio/internal/adapters/storage/outbox"
	timetableStore "studio/internal/adapters/storage/timetable"
	voucherStore "studio/internal/adapters/storage/voucher"
	waitingListStore "studio/internal/adapters/storage/waitinglist"
	websiteStore "studio/internal/adapters/storage/website"
	"studio/internal/application/orchestrators"
	domainOutbox "studio/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}
	env := envOrDefault("STUDIO_ENV", "development")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// WAL mode, foreign keys and busy timeout
	dbPath := envOrDefault("STUDIO_DB", "studio.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db, dbPath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	vouchers := voucherStore.NewSQLiteStore(timedDB)
	stores := &web.Stores{
		AccountStore:     accountStore.NewSQLiteStore(timedDB),
		EventStore:       eventStore.NewSQLiteStore(timedDB),
		BookingStore:     bookingStore.NewSQLiteStore(timedDB),
		WaitingListStore: waitingListStore.NewSQLiteStore(timedDB),
		ActivityLogStore: activityLogStore.NewSQLiteStore(timedDB),
		InvoiceStore:     invoiceStore.NewSQLiteStore(timedDB),
		VoucherStore:     vouchers,
		GiftStore:        vouchers,
		TimetableStore:   timetableStore.NewSQLiteStore(timedDB),
		GalleryStore:     galleryStore.NewSQLiteStore(timedDB),
		WebsiteStore:     websiteStore.NewSQLiteStore(timedDB),
		OutboxStore:      outboxStorePkg.NewSQLiteStore(timedDB),
	}
	generateID := func() string { return uuid.New().String() }

	// Seed the first admin account on an empty database
	adminEmail := os.Getenv("STUDIO_ADMIN_EMAIL")
	adminPassword := os.Getenv("STUDIO_ADMIN_PASSWORD")
	if adminEmail != "" && adminPassword != "" {
		seedDeps := orchestrators.CreateAccountDeps{
			AccountStore: stores.AccountStore,
			ActivityLog:  stores.ActivityLogStore,
			GenerateID:   generateID,
			Now:          time.Now,
		}
		if err := orchestrators.ExecuteSeedAdmin(ctx, seedDeps, adminEmail, adminPassword); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	}

	studio := orchestrators.StudioConfig{
		StudioEmail:    os.Getenv("STUDIO_STUDIO_EMAIL"),
		SupportEmail:   os.Getenv("STUDIO_SUPPORT_EMAIL"),
		AutoBookEmails: splitList(os.Getenv("STUDIO_AUTO_BOOK_EMAILS")),
		CartTimeout:    time.Duration(envInt("STUDIO_CART_TIMEOUT_MINUTES", 15)) * time.Minute,
		InvoiceKey:     os.Getenv("STUDIO_INVOICE_KEY"),
	}
	if studio.InvoiceKey == "" && env == "production" {
		log.Fatal("STUDIO_INVOICE_KEY is required in production")
	}

	// Email: Resend when configured, otherwise a sender that only logs
	emailFrom := envOrDefault("STUDIO_EMAIL_FROM", "Studio <noreply@example.com>")
	var sender emailPkg.Sender
	if key := os.Getenv("STUDIO_RESEND_KEY"); key != "" {
		sender = emailPkg.NewResendSender(key, emailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if env == "production" {
			log.Println("WARNING: STUDIO_RESEND_KEY is not set, email delivery is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop, set STUDIO_RESEND_KEY for real delivery)")
		}
	}
	renderer, err := emailPkg.NewRenderer(os.Getenv("STUDIO_DOMAIN"))
	if err != nil {
		log.Fatalf("failed to load email templates: %v", err)
	}
	mailer := &orchestrators.EmailNotifier{
		Renderer:   renderer,
		Sender:     sender,
		From:       emailFrom,
		ReplyTo:    studio.StudioEmail,
		Outbox:     stores.OutboxStore,
		GenerateID: generateID,
		Now:        time.Now,
	}

	// Payments: Stripe when configured
	var gateway payments.Gateway = payments.NewNoopGateway()
	if secret := os.Getenv("STUDIO_STRIPE_SECRET_KEY"); secret != "" {
		stripeGateway, err := payments.NewStripeGateway(payments.StripeConfig{
			SecretKey:      secret,
			PublishableKey: os.Getenv("STUDIO_STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STUDIO_STRIPE_WEBHOOK_SECRET"),
			Currency:       envOrDefault("STUDIO_STRIPE_CURRENCY", "gbp"),
		})
		if err != nil {
			log.Fatalf("failed to configure stripe: %v", err)
		}
		gateway = stripeGateway
		log.Println("Payments configured (Stripe)")
	} else {
		log.Println("Payments configured (noop, set STUDIO_STRIPE_SECRET_KEY to take card payments)")
	}

	// Sessions: Redis when configured so several instances can share logins
	var sessionStore middleware.SessionStore = middleware.NewMemorySessionStore()
	if redisURL := os.Getenv("STUDIO_REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("invalid STUDIO_REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis unreachable: %v", err)
		}
		sessionStore = middleware.NewRedisSessionStore(rdb, "studio:session:")
		log.Println("Sessions stored in Redis")
	}

	// Background workers: outbox retries, reminders, unpaid booking cleanup
	stopCh := make(chan struct{})
	defer close(stopCh)

	outboxProcessor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		domainOutbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender, From: emailFrom},
	}, time.Now)
	orchestrators.StartBackgroundWorker("outbox", time.Minute, outboxProcessor.ProcessPending, stopCh)

	housekeeping := orchestrators.HousekeepingDeps{
		BookingDeps: orchestrators.BookingDeps{
			Accounts:    stores.AccountStore,
			Events:      stores.EventStore,
			Bookings:    stores.BookingStore,
			WaitingList: stores.WaitingListStore,
			Invoices:    stores.InvoiceStore,
			Payments:    gateway,
			ActivityLog: stores.ActivityLogStore,
			Mailer:      mailer,
			Studio:      studio,
			GenerateID:  generateID,
			Now:         time.Now,
		},
		Due:        stores.BookingStore,
		LogCleaner: stores.ActivityLogStore,
	}
	orchestrators.StartBackgroundWorker("reminders", time.Hour, func(ctx context.Context) error {
		_, err := orchestrators.ExecuteSendReminders(ctx, housekeeping)
		return err
	}, stopCh)
	orchestrators.StartBackgroundWorker("unpaid_bookings", 5*time.Minute, func(ctx context.Context) error {
		_, err := orchestrators.ExecuteCancelUnpaidBookings(ctx, housekeeping)
		return err
	}, stopCh)

	handler := web.NewMux(ctx, "static", stores, web.Services{
		Sessions:  sessionStore,
		Mailer:    mailer,
		Payments:  gateway,
		Outbox:    outboxProcessor,
		Studio:    studio,
		UploadDir: envOrDefault("STUDIO_UPLOAD_DIR", "uploads"),
	}, collector)

	addr := envOrDefault("STUDIO_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	log.Printf("Studio %s starting on %s (env=%s, schema=%d)", version, addr, env, storage.LatestSchemaVersion())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
