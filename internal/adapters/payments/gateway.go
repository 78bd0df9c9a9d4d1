// Package payments wraps the card payment provider behind a small interface.
package payments

import (
	"context"
	"errors"
)

// Webhook event types handled by the studio.
const (
	EventSucceeded      = "payment_intent.succeeded"
	EventFailed         = "payment_intent.payment_failed"
	EventRequiresAction = "payment_intent.requires_action"
	EventRefunded       = "payment_intent.refunded"
	EventChargeRefunded = "charge.refunded"
)

// Errors returned by gateways.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrNotConfigured    = errors.New("payments are not configured")
)

// PaymentIntent is the provider-neutral view of a Stripe PaymentIntent.
type PaymentIntent struct {
	ID             string
	ClientSecret   string
	Amount         int64 // pence
	Status         string
	Metadata       map[string]string
	DeclineCode    string
	FailureMessage string
}

// WebhookEvent is a verified webhook notification.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent PaymentIntent
}

// IntentRequest describes a payment to collect.
type IntentRequest struct {
	Amount      int64 // pence
	Description string
	Email       string
	Metadata    map[string]string
}

// Gateway creates payments, issues refunds and verifies webhooks.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, req IntentRequest) (PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (PaymentIntent, error)
	Refund(ctx context.Context, paymentIntentID string, amount int64) (string, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
	PublishableKey() string
}
