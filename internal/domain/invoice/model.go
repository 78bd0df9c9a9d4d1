package invoice

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// IDLength is the length of a generated invoice reference.
const IDLength = 22

// Domain errors
var (
	ErrEmptyInvoiceID   = errors.New("invoice id cannot be empty")
	ErrNegativeAmount   = errors.New("invoice amount cannot be negative")
	ErrAlreadyPaid      = errors.New("invoice is already paid")
	ErrNotFound         = errors.New("invoice not found")
	ErrSignatureInvalid = errors.New("could not verify invoice signature")
	ErrAmountMismatch   = errors.New("invoice amount is not correct")
	ErrNoItems          = errors.New("nothing to pay for")
)

// Invoice groups the unpaid items a user pays for in one Stripe checkout.
type Invoice struct {
	ID                    string
	InvoiceID             string
	Username              string // purchaser email
	Amount                int64  // pence
	StripePaymentIntentID string
	Paid                  bool
	DatePaid              time.Time
	TotalVoucherCode      string
	ItemVoucherCode       string
	ItemVoucherUses       int // bookings the item voucher was applied to
	CreatedAt             time.Time
	BookingIDs            []string
	GiftVoucherIDs        []string
}

// Validate checks if the Invoice has valid data.
// PRE: Invoice struct is populated
// POST: Returns nil if valid, error otherwise
func (i *Invoice) Validate() error {
	if strings.TrimSpace(i.InvoiceID) == "" {
		return ErrEmptyInvoiceID
	}
	if i.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Signature returns the hex sha512 of InvoiceID+key.
// It is sent in the payment intent metadata and checked when the payment succeeds.
func (i Invoice) Signature(key string) string {
	sum := sha512.Sum512([]byte(i.InvoiceID + key))
	return hex.EncodeToString(sum[:])
}

// VerifyPayment checks the signature and the charged amount (pence) against the invoice.
func (i Invoice) VerifyPayment(signature, key string, amount int64) error {
	if signature != i.Signature(key) {
		return ErrSignatureInvalid
	}
	if amount != i.Amount {
		return ErrAmountMismatch
	}
	return nil
}

// MarkPaid records payment.
// PRE: invoice is unpaid
// POST: Paid=true, DatePaid=now
func (i *Invoice) MarkPaid(now time.Time) error {
	if i.Paid {
		return ErrAlreadyPaid
	}
	i.Paid = true
	i.DatePaid = now
	return nil
}

// ItemCount returns the number of items on the invoice.
func (i Invoice) ItemCount() int {
	return len(i.BookingIDs) + len(i.GiftVoucherIDs)
}
