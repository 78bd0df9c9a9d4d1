package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// migration is one forward-only schema step. Steps use IF NOT EXISTS so they can
// run against a database created before version tracking existed.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, "accounts, timetable, events, bookings, waiting lists, activity log, outbox", migrateCore},
	{2, "vouchers, gift vouchers, invoices", migratePayments},
	{3, "website pages, about info, gallery", migrateWebsite},
}

// LatestSchemaVersion returns the version the migration chain ends at.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, or 0 for an untracked database.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// MigrateDB brings the schema up to LatestSchemaVersion.
// File databases that already hold data are snapshotted to <dbPath>.bak-v<N> first.
// PRE: db is a valid database connection
// POST: all pending migrations applied, each in its own transaction
func MigrateDB(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}
	if current > 0 && dbPath != "" && !strings.Contains(dbPath, ":memory:") {
		backup := fmt.Sprintf("%s.bak-v%d", dbPath, current)
		if _, err := db.Exec("VACUUM INTO ?", backup); err != nil {
			return fmt.Errorf("failed to back up database before migrating: %w", err)
		}
		slog.Info("schema_backup", "path", backup, "version", current)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

func execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateCore(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT,
		password_change_required INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE TABLE IF NOT EXISTS venue (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		abbreviation TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	)`,
		`CREATE TABLE IF NOT EXISTS session_type (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
		`CREATE TABLE IF NOT EXISTS timetable_session (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT '',
		day TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		session_type_id TEXT NOT NULL,
		venue_id TEXT NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0,
		alt_cost INTEGER NOT NULL DEFAULT 0,
		max_participants INTEGER NOT NULL,
		cancellation_fee INTEGER NOT NULL DEFAULT 0,
		cancellation_period INTEGER NOT NULL DEFAULT 24,
		members_only INTEGER NOT NULL DEFAULT 0,
		show_on_timetable_page INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (session_type_id) REFERENCES session_type(id),
		FOREIGN KEY (venue_id) REFERENCES venue(id)
	)`,
		`CREATE TABLE IF NOT EXISTS event (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		venue_id TEXT,
		max_participants INTEGER NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0,
		show_on_site INTEGER NOT NULL DEFAULT 0,
		cancellation_period INTEGER NOT NULL DEFAULT 24,
		email_studio_when_booked INTEGER NOT NULL DEFAULT 1,
		slug TEXT NOT NULL UNIQUE,
		allow_booking_cancellation INTEGER NOT NULL DEFAULT 1,
		cancelled INTEGER NOT NULL DEFAULT 0,
		cancellation_fee INTEGER NOT NULL DEFAULT 0,
		members_only INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE INDEX IF NOT EXISTS idx_event_date ON event(date)`,
		`CREATE TABLE IF NOT EXISTS booking (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		date_booked TEXT NOT NULL,
		date_rebooked TEXT,
		status TEXT NOT NULL DEFAULT 'OPEN',
		attended INTEGER NOT NULL DEFAULT 0,
		no_show INTEGER NOT NULL DEFAULT 0,
		cancellation_fee_incurred INTEGER NOT NULL DEFAULT 0,
		cancellation_fee_paid INTEGER NOT NULL DEFAULT 0,
		reminder_sent INTEGER NOT NULL DEFAULT 0,
		invoice_id TEXT,
		checkout_time TEXT,
		UNIQUE (user_id, event_id),
		FOREIGN KEY (user_id) REFERENCES account(id),
		FOREIGN KEY (event_id) REFERENCES event(id)
	)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_event_status ON booking(event_id, status)`,
		`CREATE TABLE IF NOT EXISTS waiting_list_user (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		date_joined TEXT NOT NULL,
		UNIQUE (user_id, event_id),
		FOREIGN KEY (user_id) REFERENCES account(id),
		FOREIGN KEY (event_id) REFERENCES event(id)
	)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		log TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_timestamp ON activity_log(timestamp)`,
		`CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	)
}

func migratePayments(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS voucher (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		discount INTEGER NOT NULL DEFAULT 0,
		discount_amount INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		expiry_date TEXT,
		max_per_user INTEGER,
		max_vouchers INTEGER,
		activated INTEGER NOT NULL DEFAULT 0,
		is_gift INTEGER NOT NULL DEFAULT 0,
		purchaser_email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		event_types TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS voucher_use (
		id TEXT PRIMARY KEY,
		voucher_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		invoice_id TEXT NOT NULL DEFAULT '',
		used_at TEXT NOT NULL,
		FOREIGN KEY (voucher_id) REFERENCES voucher(id)
	)`,
		`CREATE TABLE IF NOT EXISTS gift_voucher_type (
		id TEXT PRIMARY KEY,
		discount_amount INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		event_types TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	)`,
		`CREATE TABLE IF NOT EXISTS gift_voucher (
		id TEXT PRIMARY KEY,
		voucher_type_id TEXT NOT NULL,
		voucher_id TEXT NOT NULL,
		purchaser_email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		paid INTEGER NOT NULL DEFAULT 0,
		invoice_id TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (voucher_type_id) REFERENCES gift_voucher_type(id),
		FOREIGN KEY (voucher_id) REFERENCES voucher(id)
	)`,
		`CREATE TABLE IF NOT EXISTS invoice (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		stripe_payment_intent_id TEXT NOT NULL DEFAULT '',
		paid INTEGER NOT NULL DEFAULT 0,
		date_paid TEXT,
		total_voucher_code TEXT NOT NULL DEFAULT '',
		item_voucher_code TEXT NOT NULL DEFAULT '',
		item_voucher_uses INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	)
}

func migrateWebsite(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS page (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		restricted INTEGER NOT NULL DEFAULT 0,
		display_in_menu INTEGER NOT NULL DEFAULT 1,
		menu_order INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE TABLE IF NOT EXISTS about_info (
		id TEXT PRIMARY KEY,
		heading TEXT NOT NULL DEFAULT '',
		subheading TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE TABLE IF NOT EXISTS gallery_category (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
		`CREATE TABLE IF NOT EXISTS gallery_image (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (category_id) REFERENCES gallery_category(id)
	)`,
	)
}
