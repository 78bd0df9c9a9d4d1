package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"studio/internal/adapters/payments"
	"studio/internal/domain/booking"
	"studio/internal/domain/invoice"
)

var (
	errEmptyCart   = &UserError{Msg: "Your cart is empty", Err: invoice.ErrNoItems}
	errCartChanged = &UserError{Msg: "Some cart items changed; please refresh the page and try again"}
)

// CheckoutInput carries the basket being paid for.
// ExpectedTotal is the total the purchaser saw; nil skips the check.
type CheckoutInput struct {
	BuildCartInput
	ExpectedTotal *int64
}

// CheckoutResult is what the payment page needs.
type CheckoutResult struct {
	Invoice        invoice.Invoice
	Cart           Cart
	ClientSecret   string
	PublishableKey string
	PaidByVoucher  bool // total was zero; everything is already paid
}

// ExecuteCheckout prices the basket, attaches it to an unpaid invoice and starts a card payment.
// PRE: the basket is not empty
// POST: bookings carry the invoice and CheckoutTime; the invoice's payment intent metadata
// lists invoice_id, invoice_signature and each item's charged cost under a numbered key.
// A zero total marks every item paid immediately.
func ExecuteCheckout(ctx context.Context, input CheckoutInput, deps PaymentDeps) (CheckoutResult, error) {
	cart, err := ExecuteBuildCart(ctx, input.BuildCartInput, deps)
	if err != nil {
		return CheckoutResult{}, err
	}
	if cart.Empty() {
		return CheckoutResult{}, errEmptyCart
	}
	if input.ExpectedTotal != nil && *input.ExpectedTotal != cart.Total {
		return CheckoutResult{}, errCartChanged
	}

	inv, err := invoiceForCart(ctx, cart, deps)
	if err != nil {
		return CheckoutResult{}, err
	}

	now := deps.Now()
	for i := range cart.Bookings {
		b := &cart.Bookings[i]
		b.InvoiceID = inv.ID
		b.CheckoutTime = now
		if err := deps.Bookings.Save(ctx, *b); err != nil {
			return CheckoutResult{}, fmt.Errorf("save booking %s: %w", b.ID, err)
		}
	}
	for i := range cart.Gifts {
		g := &cart.Gifts[i]
		g.InvoiceID = inv.ID
		if err := deps.Gifts.SaveGift(ctx, *g); err != nil {
			return CheckoutResult{}, fmt.Errorf("save gift voucher %s: %w", g.ID, err)
		}
	}

	res := CheckoutResult{Cart: cart}
	if cart.Total == 0 {
		inv, err = processInvoiceItems(ctx, inv, "voucher", deps)
		if err != nil {
			return CheckoutResult{}, err
		}
		res.Invoice, res.PaidByVoucher = inv, true
		return res, nil
	}

	req := payments.IntentRequest{
		Amount:      cart.Total,
		Description: cart.Username + "-invoice#" + inv.InvoiceID,
		Email:       cart.Username,
		Metadata:    intentMetadata(inv, cart, deps.Studio.InvoiceKey),
	}
	var pi payments.PaymentIntent
	if inv.StripePaymentIntentID == "" {
		pi, err = deps.Payments.CreatePaymentIntent(ctx, req)
	} else {
		pi, err = deps.Payments.UpdatePaymentIntent(ctx, inv.StripePaymentIntentID, req)
	}
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("payment intent for invoice %s: %w", inv.InvoiceID, err)
	}
	if inv.StripePaymentIntentID != pi.ID {
		inv.StripePaymentIntentID = pi.ID
		if err := deps.Invoices.Save(ctx, inv); err != nil {
			return CheckoutResult{}, fmt.Errorf("save invoice: %w", err)
		}
	}

	slog.Info("payment_event", "event", "checkout_started", "invoice_id", inv.InvoiceID,
		"payment_intent", pi.ID, "amount", cart.Total, "items", len(cart.Items))
	res.Invoice = inv
	res.ClientSecret = pi.ClientSecret
	res.PublishableKey = deps.Payments.PublishableKey()
	return res, nil
}

// invoiceForCart reuses the purchaser's unpaid invoice when it holds exactly the same items,
// otherwise starts a new one. Either way the amount and voucher codes are brought up to date.
func invoiceForCart(ctx context.Context, cart Cart, deps PaymentDeps) (invoice.Invoice, error) {
	bookingIDs := make([]string, 0, len(cart.Bookings))
	for _, b := range cart.Bookings {
		bookingIDs = append(bookingIDs, b.ID)
	}
	giftIDs := make([]string, 0, len(cart.Gifts))
	for _, g := range cart.Gifts {
		giftIDs = append(giftIDs, g.ID)
	}
	slices.Sort(bookingIDs)
	slices.Sort(giftIDs)

	inv, found, err := deps.Invoices.GetUnpaidForUser(ctx, cart.Username)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("get unpaid invoice: %w", err)
	}
	if !found || !sameIDs(inv.BookingIDs, bookingIDs) || !sameIDs(inv.GiftVoucherIDs, giftIDs) {
		inv = invoice.Invoice{
			ID:        deps.GenerateID(),
			InvoiceID: booking.RandomString(invoice.IDLength),
			Username:  cart.Username,
			CreatedAt: deps.Now(),
		}
	}
	inv.Amount = cart.Total
	inv.TotalVoucherCode = cart.TotalVoucher
	inv.ItemVoucherCode = cart.ItemVoucher
	inv.ItemVoucherUses = cart.ItemVoucherUses
	inv.BookingIDs = bookingIDs
	inv.GiftVoucherIDs = giftIDs
	if err := inv.Validate(); err != nil {
		return invoice.Invoice{}, err
	}
	if err := deps.Invoices.Save(ctx, inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return inv, nil
}

func sameIDs(a, b []string) bool {
	a = slices.Clone(a)
	slices.Sort(a)
	return slices.Equal(a, b)
}

// intentMetadata describes the invoice to the payment provider.
func intentMetadata(inv invoice.Invoice, cart Cart, key string) map[string]string {
	md := payments.NewIntentMetadata(inv.InvoiceID, inv.Signature(key))
	md.SetTotalVoucher(cart.TotalVoucher)
	for _, item := range cart.Items {
		if !md.AddItem(item.Kind, item.ID, item.Name, item.Cost, item.VoucherCode) {
			slog.Warn("payment_metadata_item_omitted", "invoice_id", inv.InvoiceID, "kind", item.Kind, "id", item.ID)
		}
	}
	return md.Map()
}
