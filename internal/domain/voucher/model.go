package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind constants
const (
	KindItem  = "item"  // discount applied per booking
	KindTotal = "total" // discount applied to the whole invoice
)

// GiftCodeLength is the length of generated gift voucher codes.
const GiftCodeLength = 10

// Domain errors
var (
	ErrEmptyCode           = errors.New("voucher code cannot be empty")
	ErrInvalidKind         = errors.New("voucher kind must be item or total")
	ErrNoDiscount          = errors.New("voucher must have a discount or a discount amount")
	ErrBothDiscounts       = errors.New("voucher cannot have both a percentage discount and a discount amount")
	ErrInvalidPercent      = errors.New("discount must be between 1 and 100")
	ErrExpiryBeforeStart   = errors.New("expiry date must be after start date")
	ErrExpired             = errors.New("Voucher has expired")
	ErrNotActivated        = errors.New("Voucher has not been activated yet")
	ErrNotFound            = errors.New("voucher not found")
	ErrEmptyPurchaserEmail = errors.New("purchaser email is required")
	ErrInactiveType        = errors.New("this gift voucher is not currently available")
	ErrNotValidForEvent    = errors.New("voucher is not valid for this event type")
)

// ValidationError is a user-facing voucher rejection.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Voucher is a discount code. Gift vouchers are Vouchers with IsGift set.
type Voucher struct {
	ID             string
	Code           string
	Kind           string
	Discount       int   // percent
	DiscountAmount int64 // pence
	StartDate      time.Time
	ExpiryDate     time.Time // zero means no expiry
	MaxPerUser     *int
	MaxVouchers    *int
	Activated      bool
	IsGift         bool
	PurchaserEmail string
	Name           string
	Message        string
	EventTypes     []string // empty means all event types
	CreatedAt      time.Time
}

// Validate checks if the Voucher has valid data.
// PRE: Voucher struct is populated
// POST: Returns nil if valid, error otherwise
func (v *Voucher) Validate() error {
	if strings.TrimSpace(v.Code) == "" {
		return ErrEmptyCode
	}
	if v.Kind != KindItem && v.Kind != KindTotal {
		return ErrInvalidKind
	}
	if v.Discount == 0 && v.DiscountAmount == 0 {
		return ErrNoDiscount
	}
	if v.Discount != 0 && v.DiscountAmount != 0 {
		return ErrBothDiscounts
	}
	if v.Discount < 0 || v.Discount > 100 {
		return ErrInvalidPercent
	}
	if !v.ExpiryDate.IsZero() && !v.ExpiryDate.After(v.StartDate) {
		return ErrExpiryBeforeStart
	}
	if v.IsGift && strings.TrimSpace(v.PurchaserEmail) == "" {
		return ErrEmptyPurchaserEmail
	}
	return nil
}

// HasExpired returns true once the expiry date has passed.
func (v Voucher) HasExpired(now time.Time) bool {
	return !v.ExpiryDate.IsZero() && now.After(v.ExpiryDate)
}

// HasStarted returns true once the start date has been reached.
func (v Voucher) HasStarted(now time.Time) bool {
	return !now.Before(v.StartDate)
}

// ValidateProperties checks the voucher itself, independent of who is using it.
// usedCount is the number of paid uses so far.
// Checks run in order: expired, not activated, not started, total uses.
func (v Voucher) ValidateProperties(now time.Time, usedCount int) error {
	if v.HasExpired(now) {
		return &ValidationError{Msg: ErrExpired.Error()}
	}
	if !v.Activated {
		return &ValidationError{Msg: ErrNotActivated.Error()}
	}
	if !v.HasStarted(now) {
		return &ValidationError{Msg: fmt.Sprintf("Voucher code is not valid until %s", v.StartDate.Format("02 Jan 06"))}
	}
	if v.MaxVouchers != nil && usedCount >= *v.MaxVouchers {
		return &ValidationError{Msg: fmt.Sprintf("Voucher code %s has limited number of total uses and has expired", v.Code)}
	}
	return nil
}

// ValidateForUser checks the per-user limit.
// userUses is the number of times this user has already used the code.
func (v Voucher) ValidateForUser(userUses int) error {
	if v.MaxPerUser != nil && userUses >= *v.MaxPerUser {
		return &ValidationError{Msg: fmt.Sprintf("You have already used voucher code %s the maximum number of times (%d)", v.Code, *v.MaxPerUser)}
	}
	return nil
}

// CheckEventType reports whether the voucher applies to the given event type.
func (v Voucher) CheckEventType(eventType string) bool {
	if len(v.EventTypes) == 0 {
		return true
	}
	for _, t := range v.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// ApplyTo returns the discounted cost. The result never drops below zero.
func (v Voucher) ApplyTo(cost int64) int64 {
	var discounted int64
	if v.Discount > 0 {
		// round half up to the nearest penny
		discounted = cost - (cost*int64(v.Discount)+50)/100
	} else {
		discounted = cost - v.DiscountAmount
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}

// Activate makes the voucher usable.
// POST: Activated=true
func (v *Voucher) Activate() {
	v.Activated = true
}

// GiftVoucherType is a purchasable gift voucher product.
type GiftVoucherType struct {
	ID             string
	DiscountAmount int64 // pence
	Cost           int64 // pence
	EventTypes     []string
	Active         bool
}

// Validate checks if the GiftVoucherType has valid data.
func (t *GiftVoucherType) Validate() error {
	if t.DiscountAmount <= 0 {
		return ErrNoDiscount
	}
	if t.Cost < 0 {
		return errors.New("cost cannot be negative")
	}
	return nil
}

// Description renders the type for purchase forms, e.g. "£10.00 voucher (workshop)".
func (t GiftVoucherType) Description() string {
	desc := fmt.Sprintf("£%d.%02d voucher", t.DiscountAmount/100, t.DiscountAmount%100)
	if len(t.EventTypes) > 0 {
		desc += " (" + strings.Join(t.EventTypes, ", ") + ")"
	}
	return desc
}

// GiftVoucher is the purchase record linking a voucher to its buyer and invoice.
type GiftVoucher struct {
	ID             string
	VoucherTypeID  string
	VoucherID      string
	PurchaserEmail string
	Name           string
	Message        string
	Paid           bool
	InvoiceID      string
	CreatedAt      time.Time
}

// Validate checks if the GiftVoucher has valid data.
func (g *GiftVoucher) Validate() error {
	if strings.TrimSpace(g.VoucherTypeID) == "" {
		return errors.New("gift voucher type is required")
	}
	if strings.TrimSpace(g.PurchaserEmail) == "" || !strings.Contains(g.PurchaserEmail, "@") {
		return ErrEmptyPurchaserEmail
	}
	return nil
}

// NewGift builds the unactivated voucher for a gift purchase.
// POST: IsGift=true, Activated=false, Kind=item, DiscountAmount from the type
func NewGift(id, code string, t GiftVoucherType, purchaserEmail, name, message string, now time.Time) Voucher {
	return Voucher{
		ID:             id,
		Code:           code,
		Kind:           KindItem,
		DiscountAmount: t.DiscountAmount,
		StartDate:      now,
		ExpiryDate:     now.AddDate(1, 0, 0),
		MaxPerUser:     intPtr(1),
		MaxVouchers:    intPtr(1),
		IsGift:         true,
		PurchaserEmail: purchaserEmail,
		Name:           name,
		Message:        message,
		EventTypes:     t.EventTypes,
		CreatedAt:      now,
	}
}

func intPtr(n int) *int { return &n }

// Use records one paid redemption of a voucher.
type Use struct {
	ID        string
	VoucherID string
	UserID    string
	InvoiceID string
	UsedAt    time.Time
}
