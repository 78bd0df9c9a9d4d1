package voucher

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/voucher"
)

const (
	voucherColumns = "id, code, kind, discount, discount_amount, start_date, expiry_date, max_per_user, max_vouchers, activated, is_gift, purchaser_email, name, message, event_types, created_at"
	typeColumns    = "id, discount_amount, cost, event_types, active"
	giftColumns    = "id, voucher_type_id, voucher_id, purchaser_email, name, message, paid, invoice_id, created_at"
)

// SQLiteStore implements Store and GiftStore using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new VoucherStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Voucher by its ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Voucher, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM voucher WHERE id = ?", id)
	v, err := scanVoucher(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Voucher{}, fmt.Errorf("voucher not found: %w", err)
	}
	return v, err
}

// GetByCode retrieves a Voucher by code, ignoring surrounding whitespace.
// POST: Returns domain.ErrNotFound (wrapped) when no voucher has the code
func (s *SQLiteStore) GetByCode(ctx context.Context, code string) (domain.Voucher, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM voucher WHERE code = ?", strings.TrimSpace(code))
	v, err := scanVoucher(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Voucher{}, fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	return v, err
}

// Save persists a Voucher.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, v domain.Voucher) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO voucher (`+voucherColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   code=excluded.code, kind=excluded.kind, discount=excluded.discount,
		   discount_amount=excluded.discount_amount, start_date=excluded.start_date,
		   expiry_date=excluded.expiry_date, max_per_user=excluded.max_per_user,
		   max_vouchers=excluded.max_vouchers, activated=excluded.activated,
		   is_gift=excluded.is_gift, purchaser_email=excluded.purchaser_email,
		   name=excluded.name, message=excluded.message, event_types=excluded.event_types`,
		v.ID, v.Code, v.Kind, v.Discount, v.DiscountAmount,
		storage.FormatTime(v.StartDate), storage.NullTime(v.ExpiryDate),
		nullInt(v.MaxPerUser), nullInt(v.MaxVouchers), v.Activated, v.IsGift,
		v.PurchaserEmail, v.Name, v.Message, storage.JoinList(v.EventTypes),
		storage.FormatTime(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save voucher %s: %w", v.Code, err)
	}
	return tx.Commit()
}

// Delete removes a voucher and its recorded uses.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM voucher_use WHERE voucher_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM voucher WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns discount vouchers (gifts=false) or gift vouchers (gifts=true), newest first.
func (s *SQLiteStore) List(ctx context.Context, gifts bool) ([]domain.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+voucherColumns+" FROM voucher WHERE is_gift = ? ORDER BY created_at DESC", gifts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// CountUses returns the number of paid redemptions of a voucher.
func (s *SQLiteStore) CountUses(ctx context.Context, voucherID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM voucher_use WHERE voucher_id = ?", voucherID).Scan(&n)
	return n, err
}

// CountUsesByUser returns how many times a user has redeemed a voucher.
func (s *SQLiteStore) CountUsesByUser(ctx context.Context, voucherID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM voucher_use WHERE voucher_id = ? AND user_id = ?", voucherID, userID).Scan(&n)
	return n, err
}

// RecordUse stores a redemption.
func (s *SQLiteStore) RecordUse(ctx context.Context, u domain.Use) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO voucher_use (id, voucher_id, user_id, invoice_id, used_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.VoucherID, u.UserID, u.InvoiceID, storage.FormatTime(u.UsedAt))
	return err
}

// SaveType persists a gift voucher type.
func (s *SQLiteStore) SaveType(ctx context.Context, t domain.GiftVoucherType) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gift_voucher_type (`+typeColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET discount_amount=excluded.discount_amount, cost=excluded.cost,
		   event_types=excluded.event_types, active=excluded.active`,
		t.ID, t.DiscountAmount, t.Cost, storage.JoinList(t.EventTypes), t.Active)
	return err
}

// GetType retrieves a gift voucher type.
func (s *SQLiteStore) GetType(ctx context.Context, id string) (domain.GiftVoucherType, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+typeColumns+" FROM gift_voucher_type WHERE id = ?", id)
	t, err := scanType(row.Scan)
	if err == sql.ErrNoRows {
		return domain.GiftVoucherType{}, fmt.Errorf("gift voucher type not found: %w", err)
	}
	return t, err
}

// ListTypes returns gift voucher types ordered by value.
func (s *SQLiteStore) ListTypes(ctx context.Context, activeOnly bool) ([]domain.GiftVoucherType, error) {
	query := "SELECT " + typeColumns + " FROM gift_voucher_type"
	if activeOnly {
		query += " WHERE active = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY discount_amount")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.GiftVoucherType
	for rows.Next() {
		t, err := scanType(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// DeleteType removes a gift voucher type.
func (s *SQLiteStore) DeleteType(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM gift_voucher_type WHERE id = ?", id)
	return err
}

// SaveGift persists a gift voucher purchase.
// PRE: the voucher and type rows already exist
func (s *SQLiteStore) SaveGift(ctx context.Context, g domain.GiftVoucher) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gift_voucher (`+giftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET purchaser_email=excluded.purchaser_email, name=excluded.name,
		   message=excluded.message, paid=excluded.paid, invoice_id=excluded.invoice_id`,
		g.ID, g.VoucherTypeID, g.VoucherID, g.PurchaserEmail, g.Name, g.Message, g.Paid,
		storage.NullString(g.InvoiceID), storage.FormatTime(g.CreatedAt))
	return err
}

// GetGift retrieves a gift voucher purchase.
func (s *SQLiteStore) GetGift(ctx context.Context, id string) (domain.GiftVoucher, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+giftColumns+" FROM gift_voucher WHERE id = ?", id)
	g, err := scanGift(row.Scan)
	if err == sql.ErrNoRows {
		return domain.GiftVoucher{}, fmt.Errorf("gift voucher not found: %w", err)
	}
	return g, err
}

// GetGiftByVoucher retrieves the purchase record behind a gift voucher code.
func (s *SQLiteStore) GetGiftByVoucher(ctx context.Context, voucherID string) (domain.GiftVoucher, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+giftColumns+" FROM gift_voucher WHERE voucher_id = ?", voucherID)
	g, err := scanGift(row.Scan)
	if err == sql.ErrNoRows {
		return domain.GiftVoucher{}, fmt.Errorf("gift voucher not found: %w", err)
	}
	return g, err
}

// ListGiftsByInvoice returns the gift vouchers attached to an invoice.
func (s *SQLiteStore) ListGiftsByInvoice(ctx context.Context, invoiceID string) ([]domain.GiftVoucher, error) {
	return s.queryGifts(ctx, "SELECT "+giftColumns+" FROM gift_voucher WHERE invoice_id = ? ORDER BY created_at", invoiceID)
}

// ListUnpaidGifts returns the unpaid gift vouchers bought by an email address.
func (s *SQLiteStore) ListUnpaidGifts(ctx context.Context, purchaserEmail string) ([]domain.GiftVoucher, error) {
	return s.queryGifts(ctx,
		"SELECT "+giftColumns+" FROM gift_voucher WHERE lower(purchaser_email) = lower(?) AND paid = 0 ORDER BY created_at",
		purchaserEmail)
}

func (s *SQLiteStore) queryGifts(ctx context.Context, query string, args ...interface{}) ([]domain.GiftVoucher, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.GiftVoucher
	for rows.Next() {
		g, err := scanGift(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

func scanVoucher(scan func(dest ...interface{}) error) (domain.Voucher, error) {
	var v domain.Voucher
	var start, created, eventTypes string
	var expiry sql.NullString
	var maxPerUser, maxVouchers sql.NullInt64
	err := scan(&v.ID, &v.Code, &v.Kind, &v.Discount, &v.DiscountAmount, &start, &expiry,
		&maxPerUser, &maxVouchers, &v.Activated, &v.IsGift, &v.PurchaserEmail, &v.Name,
		&v.Message, &eventTypes, &created)
	if err != nil {
		return domain.Voucher{}, err
	}
	v.StartDate = storage.ParseTime(start)
	v.ExpiryDate = storage.ParseNullTime(expiry)
	v.CreatedAt = storage.ParseTime(created)
	v.EventTypes = storage.SplitList(eventTypes)
	if maxPerUser.Valid {
		n := int(maxPerUser.Int64)
		v.MaxPerUser = &n
	}
	if maxVouchers.Valid {
		n := int(maxVouchers.Int64)
		v.MaxVouchers = &n
	}
	return v, nil
}

func scanType(scan func(dest ...interface{}) error) (domain.GiftVoucherType, error) {
	var t domain.GiftVoucherType
	var eventTypes string
	if err := scan(&t.ID, &t.DiscountAmount, &t.Cost, &eventTypes, &t.Active); err != nil {
		return domain.GiftVoucherType{}, err
	}
	t.EventTypes = storage.SplitList(eventTypes)
	return t, nil
}

func scanGift(scan func(dest ...interface{}) error) (domain.GiftVoucher, error) {
	var g domain.GiftVoucher
	var invoiceID sql.NullString
	var created string
	err := scan(&g.ID, &g.VoucherTypeID, &g.VoucherID, &g.PurchaserEmail, &g.Name, &g.Message,
		&g.Paid, &invoiceID, &created)
	if err != nil {
		return domain.GiftVoucher{}, err
	}
	g.InvoiceID = invoiceID.String
	g.CreatedAt = storage.ParseTime(created)
	return g, nil
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
