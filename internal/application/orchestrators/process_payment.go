package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"studio/internal/adapters/payments"
	"studio/internal/domain/event"
	"studio/internal/domain/invoice"
	"studio/internal/domain/voucher"
)

// unexpectedDeclineCodes are declines that point at something other than a
// routine card problem and are escalated to support.
var unexpectedDeclineCodes = []string{
	"authentication_not_handled",
	"approve_with_id",
	"fraudulent",
	"invalid_amount",
	"merchant_blacklist",
	"processing_error",
	"reenter_transaction",
	"testmode_decline",
}

// ProcessPaymentEventInput carries a verified webhook event.
type ProcessPaymentEventInput struct {
	Event payments.WebhookEvent
}

// ProcessPaymentEventResult reports what the event did.
type ProcessPaymentEventResult struct {
	Invoice   invoice.Invoice
	Processed bool // the invoice was marked paid by this event
	Ignored   bool // no invoice reference in the metadata
}

// ExecuteProcessPaymentEvent applies a payment provider event to its invoice.
// Events without an invoice_id in their metadata are payments made outside the site and are ignored.
// PRE: the event signature has been verified
// POST: on payment_intent.succeeded the invoice and its items are paid (once)
func ExecuteProcessPaymentEvent(ctx context.Context, input ProcessPaymentEventInput, deps PaymentDeps) (ProcessPaymentEventResult, error) {
	var res ProcessPaymentEventResult
	pi := input.Event.Intent

	invoiceID := pi.Metadata[payments.MetaInvoiceID]
	if invoiceID == "" {
		slog.Warn("payment_event", "event", "no_invoice_reference", "payment_intent", pi.ID, "type", input.Event.Type)
		res.Ignored = true
		return res, nil
	}
	inv, err := deps.Invoices.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return res, fmt.Errorf("process payment intent %s: no invoice matching metadata id %q: %w", pi.ID, invoiceID, err)
	}
	res.Invoice = inv

	switch input.Event.Type {
	case payments.EventSucceeded:
		if inv.Paid {
			slog.Info("payment_event", "event", "already_processed", "invoice_id", inv.InvoiceID, "payment_intent", pi.ID)
			return res, nil
		}
		if err := inv.VerifyPayment(pi.Metadata[payments.MetaInvoiceSignature], deps.Studio.InvoiceKey, pi.Amount); err != nil {
			if errors.Is(err, invoice.ErrAmountMismatch) {
				return res, fmt.Errorf("%w: payment intent %s (%s); invoice id %s (%s)", err, pi.ID,
					event.FormatPence(pi.Amount), inv.InvoiceID, event.FormatPence(inv.Amount))
			}
			return res, fmt.Errorf("%w: payment intent %s; invoice id %s", err, pi.ID, inv.InvoiceID)
		}
		if inv.StripePaymentIntentID == "" {
			inv.StripePaymentIntentID = pi.ID
		}
		if inv, err = processInvoiceItems(ctx, inv, "Stripe", deps); err != nil {
			return res, err
		}
		res.Invoice, res.Processed = inv, true

	case payments.EventRefunded, payments.EventChargeRefunded:
		data := map[string]any{"Invoice": inv.InvoiceID, "PaymentIntent": pi.ID, "User": inv.Username}
		mails := []Mail{{Template: "payment_refunded", To: []string{inv.Username}, Data: data}}
		if deps.Studio.StudioEmail != "" {
			mails = append(mails, Mail{Template: "payment_refunded", To: []string{deps.Studio.StudioEmail}, Data: data})
		}
		deps.Mailer.SendAll(ctx, mails)
		slog.Info("payment_event", "event", "refund_processed", "invoice_id", inv.InvoiceID, "payment_intent", pi.ID)

	case payments.EventFailed:
		msg := fmt.Sprintf("Failed payment intent id: %s; invoice id %s; error: %s; decline code: %s",
			pi.ID, inv.InvoiceID, pi.FailureMessage, pi.DeclineCode)
		if slices.Contains(unexpectedDeclineCodes, pi.DeclineCode) {
			slog.Error("payment_event", "event", "payment_failed_unexpected", "detail", msg)
			ReportPaymentError(ctx, deps.Mailer, deps.Studio, "Unexpected payment failure", msg)
		} else {
			slog.Info("payment_event", "event", "payment_failed", "detail", msg)
		}

	case payments.EventRequiresAction:
		slog.Info("payment_event", "event", "requires_action", "payment_intent", pi.ID, "invoice_id", inv.InvoiceID)

	default:
		slog.Info("payment_event", "event", "unhandled_type", "type", input.Event.Type, "invoice_id", inv.InvoiceID)
	}
	return res, nil
}

// ReportPaymentError emails support about a payment that could not be processed.
func ReportPaymentError(ctx context.Context, mailer Mailer, studio StudioConfig, title, detail string) {
	if studio.SupportEmail == "" {
		return
	}
	mailer.Send(ctx, Mail{
		Template: "support_alert",
		To:       []string{studio.SupportEmail},
		Data:     map[string]any{"Title": title, "Detail": detail},
	})
}

// processInvoiceItems marks everything on the invoice paid, activates and sends
// gift vouchers, records voucher redemptions and sends payment emails.
// method names how it was paid in the activity log ("Stripe", "voucher").
func processInvoiceItems(ctx context.Context, inv invoice.Invoice, method string, deps PaymentDeps) (invoice.Invoice, error) {
	now := deps.Now()
	var items []string

	bookings, err := deps.Bookings.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return inv, fmt.Errorf("list invoice bookings: %w", err)
	}
	for _, b := range bookings {
		b.Paid = true
		if err := deps.Bookings.Save(ctx, b); err != nil {
			return inv, fmt.Errorf("mark booking %s paid: %w", b.ID, err)
		}
		name := b.ID
		if ev, err := deps.Events.GetByID(ctx, b.EventID); err == nil {
			name = ev.String()
		}
		items = append(items, "Booking: "+name)
	}

	gifts, err := deps.Gifts.ListGiftsByInvoice(ctx, inv.ID)
	if err != nil {
		return inv, fmt.Errorf("list invoice gift vouchers: %w", err)
	}
	var giftMails []Mail
	for _, g := range gifts {
		g.Paid = true
		if err := deps.Gifts.SaveGift(ctx, g); err != nil {
			return inv, fmt.Errorf("mark gift voucher %s paid: %w", g.ID, err)
		}
		v, err := deps.Vouchers.GetByID(ctx, g.VoucherID)
		if err != nil {
			return inv, fmt.Errorf("get gift voucher code: %w", err)
		}
		v.Activate()
		if err := deps.Vouchers.Save(ctx, v); err != nil {
			return inv, fmt.Errorf("activate voucher %s: %w", v.Code, err)
		}
		desc := v.Code
		if t, err := deps.Gifts.GetType(ctx, g.VoucherTypeID); err == nil {
			desc = t.Description()
		}
		items = append(items, "Gift voucher: "+desc)
		giftMails = append(giftMails, Mail{
			Template: "gift_voucher",
			To:       []string{g.PurchaserEmail},
			Data: map[string]any{
				"Code":        v.Code,
				"Description": desc,
				"Expiry":      v.ExpiryDate.Format("02 Jan 2006"),
				"ID":          g.ID,
				"Message":     g.Message,
			},
		})
	}

	userKey := inv.Username
	if u, err := deps.Accounts.GetByEmail(ctx, inv.Username); err == nil {
		userKey = u.ID
	}
	if err := recordVoucherUse(ctx, deps, inv.ItemVoucherCode, inv.ItemVoucherUses, userKey, inv.ID); err != nil {
		return inv, err
	}
	if err := recordVoucherUse(ctx, deps, inv.TotalVoucherCode, 1, userKey, inv.ID); err != nil {
		return inv, err
	}

	if err := inv.MarkPaid(now); err != nil {
		return inv, err
	}
	if err := deps.Invoices.Save(ctx, inv); err != nil {
		return inv, fmt.Errorf("save invoice: %w", err)
	}

	voucherCode := inv.TotalVoucherCode
	if voucherCode == "" {
		voucherCode = inv.ItemVoucherCode
	}
	mails := []Mail{{
		Template: "payment_received",
		To:       []string{inv.Username},
		Data:     map[string]any{"Invoice": inv.InvoiceID, "Amount": inv.Amount, "Items": items, "Voucher": voucherCode},
	}}
	if deps.Studio.StudioEmail != "" {
		mails = append(mails, Mail{
			Template: "payment_studio",
			To:       []string{deps.Studio.StudioEmail},
			Data:     map[string]any{"Invoice": inv.InvoiceID, "User": inv.Username, "Amount": inv.Amount, "Items": items},
		})
	}
	deps.Mailer.SendAll(ctx, append(mails, giftMails...))

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"Invoice %s (user %s) paid by %s", inv.InvoiceID, inv.Username, method)
	slog.Info("payment_event", "event", "invoice_paid", "invoice_id", inv.InvoiceID, "method", method,
		"bookings", len(bookings), "gift_vouchers", len(gifts), "amount", inv.Amount)
	return inv, nil
}

func recordVoucherUse(ctx context.Context, deps PaymentDeps, code string, uses int, userKey, invoiceID string) error {
	if code == "" || uses <= 0 {
		return nil
	}
	v, err := deps.Vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			slog.Warn("voucher_missing", "code", code, "invoice_id", invoiceID)
			return nil
		}
		return fmt.Errorf("get voucher %s: %w", code, err)
	}
	for range uses {
		use := voucher.Use{ID: deps.GenerateID(), VoucherID: v.ID, UserID: userKey, InvoiceID: invoiceID, UsedAt: deps.Now()}
		if err := deps.Vouchers.RecordUse(ctx, use); err != nil {
			return fmt.Errorf("record voucher use: %w", err)
		}
	}
	return nil
}
