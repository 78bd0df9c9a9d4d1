package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// NoopGateway stands in for Stripe in development. Intents are fake and
// webhooks are always rejected, so nothing is ever marked paid through it.
type NoopGateway struct {
	seq     atomic.Int64
	mu      sync.Mutex
	intents map[string]PaymentIntent
}

// NewNoopGateway creates a new NoopGateway.
func NewNoopGateway() *NoopGateway {
	return &NoopGateway{intents: make(map[string]PaymentIntent)}
}

// PublishableKey returns "".
func (g *NoopGateway) PublishableKey() string { return "" }

// CreatePaymentIntent returns a fake intent.
func (g *NoopGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (PaymentIntent, error) {
	id := fmt.Sprintf("noop_pi_%d", g.seq.Add(1))
	slog.Info("noop_payment_intent", "payment_intent", id, "amount", req.Amount)
	return g.store(id, req), nil
}

// UpdatePaymentIntent returns the intent with the new amount.
func (g *NoopGateway) UpdatePaymentIntent(_ context.Context, id string, req IntentRequest) (PaymentIntent, error) {
	return g.store(id, req), nil
}

// GetPaymentIntent returns an intent created through this gateway.
func (g *NoopGateway) GetPaymentIntent(_ context.Context, id string) (PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[id]
	if !ok {
		return PaymentIntent{}, fmt.Errorf("payment intent %s not found", id)
	}
	return pi, nil
}

func (g *NoopGateway) store(id string, req IntentRequest) PaymentIntent {
	pi := PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Status: "requires_payment_method", Metadata: copyMetadata(req.Metadata)}
	g.mu.Lock()
	g.intents[id] = pi
	g.mu.Unlock()
	return pi
}

// Refund logs the refund.
func (g *NoopGateway) Refund(_ context.Context, paymentIntentID string, amount int64) (string, error) {
	slog.Info("noop_refund", "payment_intent", paymentIntentID, "amount", amount)
	return "noop_re_" + paymentIntentID, nil
}

// ParseWebhook always fails.
func (g *NoopGateway) ParseWebhook([]byte, string) (WebhookEvent, error) {
	return WebhookEvent{}, ErrNotConfigured
}
