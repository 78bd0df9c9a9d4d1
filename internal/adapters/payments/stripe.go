package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds the Stripe credentials.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string // defaults to gbp
}

// StripeGateway implements Gateway with stripe-go.
type StripeGateway struct {
	config StripeConfig
}

// NewStripeGateway configures the Stripe client.
// PRE: SecretKey is non-empty
// POST: stripe.Key is set process-wide
func NewStripeGateway(config StripeConfig) (*StripeGateway, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if config.Currency == "" {
		config.Currency = "gbp"
	}
	stripe.Key = config.SecretKey
	return &StripeGateway{config: config}, nil
}

// PublishableKey is passed to the checkout page for Stripe Elements.
func (g *StripeGateway) PublishableKey() string {
	return g.config.PublishableKey
}

// CreatePaymentIntent creates a PaymentIntent with automatic payment methods.
func (g *StripeGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(g.config.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: copyMetadata(req.Metadata),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}
	slog.Info("stripe_event", "event", "payment_intent_created", "payment_intent", pi.ID, "amount", pi.Amount)
	return fromStripe(pi), nil
}

// UpdatePaymentIntent changes the amount and metadata of an unconfirmed PaymentIntent.
func (g *StripeGateway) UpdatePaymentIntent(_ context.Context, id string, req IntentRequest) (PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Metadata: copyMetadata(req.Metadata),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	pi, err := paymentintent.Update(id, params)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("failed to update payment intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

// GetPaymentIntent fetches a PaymentIntent, including its metadata.
func (g *StripeGateway) GetPaymentIntent(_ context.Context, id string) (PaymentIntent, error) {
	pi, err := paymentintent.Get(id, nil)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

// Refund refunds amount pence of a PaymentIntent. amount 0 refunds in full.
func (g *StripeGateway) Refund(_ context.Context, paymentIntentID string, amount int64) (string, error) {
	if paymentIntentID == "" {
		return "", fmt.Errorf("payment intent ID is required")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create refund: %w", err)
	}
	slog.Info("stripe_event", "event", "refund_created", "payment_intent", paymentIntentID, "refund", r.ID, "amount", r.Amount)
	return r.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// POST: ErrInvalidSignature for a bad signature; ErrMalformedEvent for an unreadable body
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if json.Valid(payload) {
			return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, fmt.Errorf("%w: no data", ErrMalformedEvent)
	}
	switch out.Type {
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Intent = PaymentIntent{Amount: ch.AmountRefunded, Metadata: ch.Metadata, Status: string(ch.Status)}
		if ch.PaymentIntent != nil {
			out.Intent.ID = ch.PaymentIntent.ID
			if len(ch.PaymentIntent.Metadata) > 0 {
				out.Intent.Metadata = ch.PaymentIntent.Metadata
			}
		}
	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		out.Intent = fromStripe(&pi)
	}
	return out, nil
}

func fromStripe(pi *stripe.PaymentIntent) PaymentIntent {
	out := PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		out.DeclineCode = string(pi.LastPaymentError.DeclineCode)
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
