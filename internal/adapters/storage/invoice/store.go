package invoice

import (
	"context"

	domain "studio/internal/domain/invoice"
)

// Store persists invoices and their item links.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Invoice, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	GetUnpaidForUser(ctx context.Context, username string) (domain.Invoice, bool, error)
	Save(ctx context.Context, value domain.Invoice) error
	List(ctx context.Context, paidOnly bool, limit int) ([]domain.Invoice, error)
}
