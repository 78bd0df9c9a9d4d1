package browser_test

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	emailPkg "studio/internal/adapters/email"
	web "studio/internal/adapters/http"
	"studio/internal/adapters/http/perf"
	"studio/internal/adapters/storage"
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
	domainAccount "studio/internal/domain/account"
)

const (
	adminEmail    = "admin@studio.test"
	adminPassword = "studio-admin-pass!"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Stores  *web.Stores
}

// newTestApp wires the whole site over a temp SQLite file and serves it on a free port.
// Skips when the Playwright driver is not installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	vouchers := voucherStore.NewSQLiteStore(db)
	stores := &web.Stores{
		AccountStore:     accountStore.NewSQLiteStore(db),
		EventStore:       eventStore.NewSQLiteStore(db),
		BookingStore:     bookingStore.NewSQLiteStore(db),
		WaitingListStore: waitingListStore.NewSQLiteStore(db),
		ActivityLogStore: activityLogStore.NewSQLiteStore(db),
		InvoiceStore:     invoiceStore.NewSQLiteStore(db),
		VoucherStore:     vouchers,
		GiftStore:        vouchers,
		TimetableStore:   timetableStore.NewSQLiteStore(db),
		GalleryStore:     galleryStore.NewSQLiteStore(db),
		WebsiteStore:     websiteStore.NewSQLiteStore(db),
		OutboxStore:      outboxStore.NewSQLiteStore(db),
	}

	// Admin without PasswordChangeRequired so login lands on the home page
	ctx, cancel := context.WithCancel(context.Background())
	generateID := func() string { return uuid.New().String() }
	if _, err := orchestrators.ExecuteCreateAccount(ctx, orchestrators.CreateAccountInput{
		Email:     adminEmail,
		FirstName: "Ada",
		Password:  adminPassword,
		Role:      domainAccount.RoleAdmin,
	}, orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		ActivityLog:  stores.ActivityLogStore,
		GenerateID:   generateID,
		Now:          time.Now,
	}); err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	// Templates and static files are resolved from the project root
	projectRoot := findProjectRoot(t)
	origDir, _ := os.Getwd()
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("failed to chdir to project root: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	renderer, err := emailPkg.NewRenderer("")
	if err != nil {
		t.Fatalf("failed to load email templates: %v", err)
	}
	mailer := &orchestrators.EmailNotifier{
		Renderer:   renderer,
		Sender:     emailPkg.NewNoopSender(),
		From:       "Studio <noreply@studio.test>",
		Outbox:     stores.OutboxStore,
		GenerateID: generateID,
		Now:        time.Now,
	}

	web.RateLimitPerSecond = 1000
	mux := web.NewMux(ctx, "static", stores, web.Services{
		Mailer:    mailer,
		Studio:    orchestrators.StudioConfig{StudioEmail: "studio@studio.test", CartTimeout: 15 * time.Minute},
		UploadDir: filepath.Join(tmpDir, "uploads"),
	}, perf.NewCollector(perf.DefaultRingSize))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("test server error: %v", err)
		}
	}()
	baseURL := "http://" + listener.Addr().String()

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		cancel()
		db.Close()
		t.Skipf("playwright driver unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		cancel()
		db.Close()
		t.Skipf("chromium unavailable: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		cancel()
		db.Close()
	})

	return &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Stores:  stores,
	}
}

// newPage opens a tab with its own cookie jar.
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login signs in through the form and waits for the redirect home.
func (a *testApp) login(t *testing.T, page playwright.Page, email, password string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=Email]").Fill(email); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=Password]").Fill(password); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("main button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click login: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect home: %v", err)
	}
}

// mainText returns the visible text of the page body.
func mainText(t *testing.T, page playwright.Page) string {
	t.Helper()
	text, err := page.Locator("main").TextContent()
	if err != nil {
		t.Fatalf("failed to read page text: %v", err)
	}
	return text
}

// findProjectRoot walks up from the working directory to the directory holding go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod) from working directory")
		}
		dir = parent
	}
}
