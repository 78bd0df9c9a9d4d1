package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"studio/internal/adapters/http/middleware"
	"studio/internal/adapters/payments"
	"studio/internal/application/orchestrators"
	domainEvent "studio/internal/domain/event"
)

// maxWebhookBytes bounds webhook payloads; Stripe events are well under this.
const maxWebhookBytes = 65536

// cartInput reads who is paying and their voucher codes from the request.
// Logged-in users pay for their own basket; guests name an email for gift vouchers.
func cartInput(r *http.Request) orchestrators.BuildCartInput {
	input := orchestrators.BuildCartInput{}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		input.UserID = sess.AccountID
	} else {
		input.PurchaserEmail = r.FormValue("email")
	}
	for _, code := range r.Form["code"] {
		if code = strings.TrimSpace(code); code != "" {
			input.VoucherCodes = append(input.VoucherCodes, code)
		}
	}
	return input
}

// handleCheckout handles GET (basket) and POST (start payment) for /checkout
func handleCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	input := cartInput(r)
	if input.UserID == "" && input.PurchaserEmail == "" {
		http.Redirect(w, r, "/login?next=/checkout", http.StatusSeeOther)
		return
	}

	if r.Method == "GET" {
		cart, err := orchestrators.ExecuteBuildCart(r.Context(), input, paymentDeps())
		if err != nil {
			internalError(w, err)
			return
		}
		if isHTMLRequest(r) {
			renderTemplate(w, r, "checkout.html", map[string]any{
				"Cart":  cart,
				"Email": input.PurchaserEmail,
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cart)
		return
	}

	if r.Method == "POST" {
		checkout := orchestrators.CheckoutInput{BuildCartInput: input}
		if raw := r.FormValue("total"); raw != "" {
			total, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "Invalid total", http.StatusBadRequest)
				return
			}
			checkout.ExpectedTotal = &total
		}

		result, err := orchestrators.ExecuteCheckout(r.Context(), checkout, paymentDeps())
		if err != nil {
			refuse(w, r, err)
			return
		}

		if !isHTMLRequest(r) {
			writeJSON(w, http.StatusOK, map[string]any{
				"invoice_id":      result.Invoice.InvoiceID,
				"total":           result.Cart.Total,
				"paid_by_voucher": result.PaidByVoucher,
				"client_secret":   result.ClientSecret,
				"publishable_key": result.PublishableKey,
			})
			return
		}
		if result.PaidByVoucher {
			http.Redirect(w, r, "/payment/complete?invoice="+url.QueryEscape(result.Invoice.InvoiceID), http.StatusSeeOther)
			return
		}
		renderTemplate(w, r, "payment.html", map[string]any{
			"Result":      result,
			"TotalText":   domainEvent.FormatPence(result.Cart.Total),
			"CompleteURL": "/payment/complete?invoice=" + url.QueryEscape(result.Invoice.InvoiceID),
		})
		return
	}

	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handlePaymentComplete handles GET /payment/complete?invoice=<invoice id>
// Stripe redirects here after card confirmation; the webhook does the processing,
// so an unpaid invoice is shown as still processing.
func handlePaymentComplete(w http.ResponseWriter, r *http.Request) {
	invoiceID := r.URL.Query().Get("invoice")
	if invoiceID == "" {
		http.Error(w, "missing invoice", http.StatusBadRequest)
		return
	}
	inv, err := stores.InvoiceStore.GetByInvoiceID(r.Context(), invoiceID)
	if err != nil {
		failRequest(w, r, err)
		return
	}
	status := "processing"
	if inv.Paid {
		status = "paid"
	} else if r.URL.Query().Get("redirect_status") == "failed" {
		status = "failed"
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "payment_complete.html", map[string]any{
			"Invoice":    inv,
			"Status":     status,
			"AmountText": domainEvent.FormatPence(inv.Amount),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invoice_id": inv.InvoiceID, "status": status})
}

// handleStripeWebhook handles POST /stripe/webhook
// Signature failures are 400. Once verified the event is always acknowledged
// with 200: processing errors are logged and reported to support instead of
// making Stripe retry.
func handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	ev, err := paymentGateway.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			slog.Warn("stripe_webhook_rejected", "reason", "signature", "error", err)
			http.Error(w, "Invalid webhook signature", http.StatusBadRequest)
			return
		}
		slog.Warn("stripe_webhook_rejected", "reason", "payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteProcessPaymentEvent(r.Context(), orchestrators.ProcessPaymentEventInput{Event: ev}, paymentDeps())
	if err != nil {
		slog.Error("stripe_webhook_failed", "event_id", ev.ID, "type", ev.Type, "payment_intent", ev.Intent.ID, "error", err)
		orchestrators.ReportPaymentError(r.Context(), mailer, studioConfig,
			"Error processing stripe payment intent "+ev.Intent.ID,
			fmt.Sprintf("Event %s (%s): %v", ev.ID, ev.Type, err))
	} else {
		slog.Info("stripe_webhook", "event_id", ev.ID, "type", ev.Type, "processed", result.Processed, "ignored", result.Ignored)
	}
	w.WriteHeader(http.StatusOK)
}

// handleGiftVouchers handles GET (choose a voucher) and POST (purchase) for /gift-vouchers
func handleGiftVouchers(w http.ResponseWriter, r *http.Request) {
	sess, loggedIn := middleware.GetSessionFromContext(r.Context())

	if r.Method == "GET" {
		types, err := stores.GiftStore.ListTypes(r.Context(), true)
		if err != nil {
			internalError(w, err)
			return
		}
		if isHTMLRequest(r) {
			renderTemplate(w, r, "gift_vouchers.html", map[string]any{
				"Types": types,
				"Email": sess.Email,
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types)
		return
	}

	if r.Method == "POST" {
		input := orchestrators.PurchaseGiftVoucherInput{}
		if isForm(r) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form submission", http.StatusBadRequest)
				return
			}
			input.TypeID = r.FormValue("TypeID")
			input.PurchaserEmail = r.FormValue("PurchaserEmail")
			input.Name = r.FormValue("Name")
			input.Message = r.FormValue("Message")
		} else if err := strictDecode(r, &input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if loggedIn {
			input.PurchaserEmail = sess.Email
		}

		result, err := orchestrators.ExecutePurchaseGiftVoucher(r.Context(), input, paymentDeps())
		if err != nil {
			refuse(w, r, err)
			return
		}

		if isHTMLRequest(r) {
			target := "/checkout"
			if !loggedIn {
				target += "?email=" + url.QueryEscape(input.PurchaserEmail)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"gift_id": result.Gift.ID, "code": result.Voucher.Code})
		return
	}

	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleGiftVoucherDetail handles GET /gift-vouchers/{id}
// Shows the printable voucher once it is paid for.
func handleGiftVoucherDetail(w http.ResponseWriter, r *http.Request) {
	gift, err := stores.GiftStore.GetGift(r.Context(), r.PathValue("id"))
	if err != nil {
		failRequest(w, r, err)
		return
	}
	if !gift.Paid {
		http.NotFound(w, r)
		return
	}
	v, err := stores.VoucherStore.GetByID(r.Context(), gift.VoucherID)
	if err != nil {
		internalError(w, err)
		return
	}
	t, err := stores.GiftStore.GetType(r.Context(), gift.VoucherTypeID)
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "gift_voucher_detail.html", map[string]any{
			"Gift":        gift,
			"Voucher":     v,
			"Description": t.Description(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":        v.Code,
		"name":        gift.Name,
		"message":     gift.Message,
		"description": t.Description(),
		"expiry":      v.ExpiryDate,
	})
}
