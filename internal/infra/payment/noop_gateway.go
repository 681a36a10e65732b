package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway hands out deterministic intents without talking to a provider.
// Used in dev mode and tests.
type NoopGateway struct {
	seq atomic.Int64
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (string, string, error) {
	n := g.seq.Add(1)
	return fmt.Sprintf("noop-intent-%d", n), fmt.Sprintf("noop-secret-%d", n), nil
}

func (g *NoopGateway) VerifyWebhook(payload []byte, signature string) (*model.PaymentOutcome, error) {
	// No provider, no signatures: treat the raw payload as pre-verified JSON.
	return parseEvent(payload)
}

func (g *NoopGateway) QueryIntent(ctx context.Context, intentID string) (*model.PaymentOutcome, error) {
	return nil, nil
}
