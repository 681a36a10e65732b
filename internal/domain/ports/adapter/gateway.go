package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain/model"
)

// CreateIntentRequest carries everything the gateway needs to open an intent.
type CreateIntentRequest struct {
	StudentID     string
	InstallmentID string
	Amount        decimal.Decimal
	Currency      string
	Description   string
}

// PaymentGateway abstracts the external payment provider.
//
// CreateIntent has no internal retry: a timeout surfaces to the caller, who
// retries by creating a new intent (a new external id). Retrying a stale
// intent internally would risk a duplicate charge at the provider.
type PaymentGateway interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (intentID, clientSecret string, err error)
	// VerifyWebhook authenticates the raw payload against the signature header
	// and translates the event into a PaymentOutcome.
	VerifyWebhook(payload []byte, signature string) (*model.PaymentOutcome, error)
	// QueryIntent asks the provider for the current outcome of an intent,
	// used by the reconciler when a webhook never arrived.
	QueryIntent(ctx context.Context, intentID string) (*model.PaymentOutcome, error)
}
