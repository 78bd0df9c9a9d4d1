package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"studio/internal/adapters/payments"
	"studio/internal/domain/booking"
	"studio/internal/domain/invoice"
	"studio/internal/domain/voucher"
)

// CartBookingStore is the booking persistence used by checkout and payment processing.
type CartBookingStore interface {
	ListUnpaidForUser(ctx context.Context, userID string) ([]booking.Booking, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]booking.Booking, error)
	Save(ctx context.Context, b booking.Booking) error
}

// GiftStore is the gift voucher persistence used by purchases, checkout and payment processing.
type GiftStore interface {
	GetType(ctx context.Context, id string) (voucher.GiftVoucherType, error)
	SaveGift(ctx context.Context, g voucher.GiftVoucher) error
	ListUnpaidGifts(ctx context.Context, purchaserEmail string) ([]voucher.GiftVoucher, error)
	ListGiftsByInvoice(ctx context.Context, invoiceID string) ([]voucher.GiftVoucher, error)
}

// VoucherStore looks up vouchers and records their redemptions.
type VoucherStore interface {
	GetByID(ctx context.Context, id string) (voucher.Voucher, error)
	GetByCode(ctx context.Context, code string) (voucher.Voucher, error)
	Save(ctx context.Context, v voucher.Voucher) error
	CountUses(ctx context.Context, voucherID string) (int, error)
	CountUsesByUser(ctx context.Context, voucherID, userID string) (int, error)
	RecordUse(ctx context.Context, u voucher.Use) error
}

// InvoiceStore is the invoice persistence used by checkout and payment processing.
type InvoiceStore interface {
	GetByInvoiceID(ctx context.Context, invoiceID string) (invoice.Invoice, error)
	GetUnpaidForUser(ctx context.Context, username string) (invoice.Invoice, bool, error)
	Save(ctx context.Context, inv invoice.Invoice) error
}

// IntentCreator starts and updates card payments.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req payments.IntentRequest) (payments.PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, req payments.IntentRequest) (payments.PaymentIntent, error)
	PublishableKey() string
}

// PaymentDeps holds dependencies for the basket, checkout, gift voucher and payment use cases.
type PaymentDeps struct {
	Accounts    AccountFinder
	Events      EventGetter
	Bookings    CartBookingStore
	Gifts       GiftStore
	Vouchers    VoucherStore
	Invoices    InvoiceStore
	Payments    IntentCreator
	ActivityLog ActivityLogger
	Mailer      Mailer
	Studio      StudioConfig
	GenerateID  func() string
	Now         func() time.Time
}

// Cart item kinds.
const (
	ItemBooking     = "booking"
	ItemGiftVoucher = "gift_voucher"
)

// CartItem is one line of the basket.
type CartItem struct {
	Kind         string
	ID           string
	Name         string
	OriginalCost int64 // pence
	Cost         int64 // pence, after any item voucher
	VoucherCode  string
}

// Cart is the priced basket for one purchaser.
type Cart struct {
	UserID          string // empty for guest gift voucher purchases
	Username        string // purchaser email, recorded on the invoice
	Bookings        []booking.Booking
	Gifts           []voucher.GiftVoucher
	Items           []CartItem
	ItemVoucher     string
	ItemVoucherUses int
	TotalVoucher    string
	Subtotal        int64 // pence, after item vouchers
	Total           int64 // pence, after the total voucher
	VoucherErrors   []string
}

// Empty reports whether there is nothing to pay for.
func (c Cart) Empty() bool { return len(c.Items) == 0 }

// BuildCartInput identifies the purchaser and the voucher codes they entered.
// Guests set PurchaserEmail instead of UserID and can only buy gift vouchers.
type BuildCartInput struct {
	UserID         string
	PurchaserEmail string
	VoucherCodes   []string
}

// ExecuteBuildCart prices the purchaser's unpaid bookings and gift vouchers.
// Item vouchers discount individual bookings, up to the voucher's remaining uses;
// a total voucher discounts the whole basket. Rejected codes are reported in VoucherErrors.
func ExecuteBuildCart(ctx context.Context, input BuildCartInput, deps PaymentDeps) (Cart, error) {
	var cart Cart
	now := deps.Now()

	if input.UserID != "" {
		user, err := deps.Accounts.GetByID(ctx, input.UserID)
		if err != nil {
			return cart, fmt.Errorf("get account: %w", err)
		}
		cart.UserID, cart.Username = user.ID, user.Email
		if cart.Bookings, err = deps.Bookings.ListUnpaidForUser(ctx, user.ID); err != nil {
			return cart, fmt.Errorf("list unpaid bookings: %w", err)
		}
	} else {
		cart.Username = strings.TrimSpace(input.PurchaserEmail)
	}
	if cart.Username != "" {
		gifts, err := deps.Gifts.ListUnpaidGifts(ctx, cart.Username)
		if err != nil {
			return cart, fmt.Errorf("list unpaid gift vouchers: %w", err)
		}
		cart.Gifts = gifts
	}

	var itemVoucher, totalVoucher *voucher.Voucher
	itemAllowance := 0
	for _, code := range input.VoucherCodes {
		code = strings.ReplaceAll(code, " ", "")
		if code == "" {
			continue
		}
		v, allowance, err := checkVoucher(ctx, deps, code, cart.usesKey(), now)
		if err != nil {
			var verr *voucher.ValidationError
			if errors.As(err, &verr) {
				cart.VoucherErrors = append(cart.VoucherErrors, verr.Msg)
				continue
			}
			return cart, err
		}
		switch {
		case v.Kind == voucher.KindTotal && totalVoucher == nil:
			totalVoucher = &v
		case v.Kind == voucher.KindItem && itemVoucher == nil:
			itemVoucher, itemAllowance = &v, allowance
		default:
			cart.VoucherErrors = append(cart.VoucherErrors, fmt.Sprintf("Only one %s voucher code can be used at a time", v.Kind))
		}
	}

	for _, b := range cart.Bookings {
		ev, err := deps.Events.GetByID(ctx, b.EventID)
		if err != nil {
			return cart, fmt.Errorf("get event %s: %w", b.EventID, err)
		}
		item := CartItem{Kind: ItemBooking, ID: b.ID, Name: ev.String(), OriginalCost: ev.Cost, Cost: ev.Cost}
		if itemVoucher != nil && cart.ItemVoucherUses < itemAllowance && itemVoucher.CheckEventType(ev.EventType) {
			item.Cost = itemVoucher.ApplyTo(ev.Cost)
			item.VoucherCode = itemVoucher.Code
			cart.ItemVoucherUses++
		}
		cart.Items = append(cart.Items, item)
		cart.Subtotal += item.Cost
	}
	if itemVoucher != nil {
		if cart.ItemVoucherUses == 0 {
			cart.VoucherErrors = append(cart.VoucherErrors, fmt.Sprintf("Code %s is not valid for any items in your cart", itemVoucher.Code))
		} else {
			cart.ItemVoucher = itemVoucher.Code
		}
	}

	for _, g := range cart.Gifts {
		t, err := deps.Gifts.GetType(ctx, g.VoucherTypeID)
		if err != nil {
			return cart, fmt.Errorf("get gift voucher type %s: %w", g.VoucherTypeID, err)
		}
		cart.Items = append(cart.Items, CartItem{
			Kind:         ItemGiftVoucher,
			ID:           g.ID,
			Name:         "Gift voucher: " + t.Description(),
			OriginalCost: t.Cost,
			Cost:         t.Cost,
		})
		cart.Subtotal += t.Cost
	}

	cart.Total = cart.Subtotal
	if totalVoucher != nil && !cart.Empty() {
		cart.TotalVoucher = totalVoucher.Code
		cart.Total = totalVoucher.ApplyTo(cart.Subtotal)
	}
	return cart, nil
}

// usesKey identifies the purchaser in voucher redemption counts.
func (c Cart) usesKey() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Username
}

// checkVoucher validates a code for the purchaser and returns how many more times they may use it.
func checkVoucher(ctx context.Context, deps PaymentDeps, code, userKey string, now time.Time) (voucher.Voucher, int, error) {
	v, err := deps.Vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			return voucher.Voucher{}, 0, &voucher.ValidationError{Msg: fmt.Sprintf("%q is not a valid code", code)}
		}
		return voucher.Voucher{}, 0, fmt.Errorf("get voucher %s: %w", code, err)
	}
	used, err := deps.Vouchers.CountUses(ctx, v.ID)
	if err != nil {
		return voucher.Voucher{}, 0, fmt.Errorf("count voucher uses: %w", err)
	}
	if err := v.ValidateProperties(now, used); err != nil {
		return voucher.Voucher{}, 0, err
	}
	userUses, err := deps.Vouchers.CountUsesByUser(ctx, v.ID, userKey)
	if err != nil {
		return voucher.Voucher{}, 0, fmt.Errorf("count voucher uses for user: %w", err)
	}
	if err := v.ValidateForUser(userUses); err != nil {
		return voucher.Voucher{}, 0, err
	}

	allowance := math.MaxInt
	if v.MaxPerUser != nil {
		allowance = *v.MaxPerUser - userUses
	}
	if v.MaxVouchers != nil {
		allowance = min(allowance, *v.MaxVouchers-used)
	}
	return v, allowance, nil
}
