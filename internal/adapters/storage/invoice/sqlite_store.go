package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studio/internal/adapters/storage"
	domain "studio/internal/domain/invoice"
)

const invoiceColumns = "id, invoice_id, username, amount, stripe_payment_intent_id, paid, date_paid, total_voucher_code, item_voucher_code, item_voucher_uses, created_at"

// SQLiteStore implements Store using SQLite.
// Invoice items are not stored separately: bookings and gift vouchers point at
// the invoice through their invoice_id column.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new InvoiceStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Invoice and its item ids by primary key.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	return s.get(ctx, "SELECT "+invoiceColumns+" FROM invoice WHERE id = ?", id)
}

// GetByInvoiceID retrieves an Invoice by the reference sent to Stripe.
// POST: Returns domain.ErrNotFound (wrapped) for an unknown reference
func (s *SQLiteStore) GetByInvoiceID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	return s.get(ctx, "SELECT "+invoiceColumns+" FROM invoice WHERE invoice_id = ?", invoiceID)
}

// GetUnpaidForUser returns the user's most recent unpaid invoice, for reuse at checkout.
func (s *SQLiteStore) GetUnpaidForUser(ctx context.Context, username string) (domain.Invoice, bool, error) {
	inv, err := s.get(ctx,
		"SELECT "+invoiceColumns+" FROM invoice WHERE username = ? AND paid = 0 ORDER BY created_at DESC LIMIT 1", username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invoice{}, false, nil
		}
		return domain.Invoice{}, false, err
	}
	return inv, true, nil
}

// Save persists an Invoice and points its bookings and gift vouchers at it.
// Unpaid items previously attached but no longer listed are detached.
// PRE: entity has been validated
// POST: invoice row upserted; item links match BookingIDs and GiftVoucherIDs
func (s *SQLiteStore) Save(ctx context.Context, inv domain.Invoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invoice (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   amount=excluded.amount, stripe_payment_intent_id=excluded.stripe_payment_intent_id,
		   paid=excluded.paid, date_paid=excluded.date_paid,
		   total_voucher_code=excluded.total_voucher_code,
		   item_voucher_code=excluded.item_voucher_code,
		   item_voucher_uses=excluded.item_voucher_uses`,
		inv.ID, inv.InvoiceID, inv.Username, inv.Amount, inv.StripePaymentIntentID, inv.Paid,
		storage.NullTime(inv.DatePaid), inv.TotalVoucherCode, inv.ItemVoucherCode,
		inv.ItemVoucherUses, storage.FormatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save invoice %s: %w", inv.InvoiceID, err)
	}

	if err := relink(ctx, tx, "booking", inv.ID, inv.BookingIDs); err != nil {
		return err
	}
	if err := relink(ctx, tx, "gift_voucher", inv.ID, inv.GiftVoucherIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns invoices newest first.
func (s *SQLiteStore) List(ctx context.Context, paidOnly bool, limit int) ([]domain.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoice"
	if paidOnly {
		query += " WHERE paid = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, inv)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) get(ctx context.Context, query string, args ...interface{}) (domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err == sql.ErrNoRows {
		return domain.Invoice{}, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.BookingIDs, err = s.itemIDs(ctx, "booking", inv.ID); err != nil {
		return domain.Invoice{}, err
	}
	if inv.GiftVoucherIDs, err = s.itemIDs(ctx, "gift_voucher", inv.ID); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (s *SQLiteStore) itemIDs(ctx context.Context, table, invoiceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM "+table+" WHERE invoice_id = ? ORDER BY id", invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// relink detaches unpaid items from the invoice and attaches the listed ones.
// table is one of the fixed item tables, never user input.
func relink(ctx context.Context, tx *sql.Tx, table, invoiceID string, ids []string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET invoice_id = NULL WHERE invoice_id = ? AND paid = 0", invoiceID); err != nil {
		return fmt.Errorf("detach %s items: %w", table, err)
	}
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, invoiceID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := tx.ExecContext(ctx, "UPDATE "+table+" SET invoice_id = ? WHERE id IN ("+storage.Placeholders(len(ids))+")", args...)
	if err != nil {
		return fmt.Errorf("attach %s items: %w", table, err)
	}
	return nil
}

func scanInvoice(scan func(dest ...interface{}) error) (domain.Invoice, error) {
	var inv domain.Invoice
	var datePaid sql.NullString
	var created string
	err := scan(&inv.ID, &inv.InvoiceID, &inv.Username, &inv.Amount, &inv.StripePaymentIntentID,
		&inv.Paid, &datePaid, &inv.TotalVoucherCode, &inv.ItemVoucherCode, &inv.ItemVoucherUses, &created)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.DatePaid = storage.ParseNullTime(datePaid)
	inv.CreatedAt = storage.ParseTime(created)
	return inv, nil
}
