package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type GatewayPaymentStatus string

const (
	GatewayPaymentStatusPending GatewayPaymentStatus = "pending" // intent created; awaiting outcome
	GatewayPaymentStatusPaid    GatewayPaymentStatus = "paid"    // terminal
	GatewayPaymentStatusFailed  GatewayPaymentStatus = "failed"  // terminal
)

// GatewayPaymentRecord is one attempt at paying through the external gateway.
// ExternalIntentID is the gateway-assigned id and the dedup key for webhook
// reconciliation: at most one record transitions an installment to paid.
type GatewayPaymentRecord struct {
	ID               string // UUID
	ExternalIntentID string // unique, assigned by the gateway
	StudentID        string
	InstallmentID    *string // may be created before an installment is chosen
	Amount           decimal.Decimal
	Currency         string
	Status           GatewayPaymentStatus
	PaymentMethod    string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}

// CanTransition: pending -> paid|failed, both terminal.
func (s GatewayPaymentStatus) CanTransition(to GatewayPaymentStatus) bool {
	return s == GatewayPaymentStatusPending &&
		(to == GatewayPaymentStatusPaid || to == GatewayPaymentStatusFailed)
}

// PaymentOutcome is the internal translation of a gateway event.
type PaymentOutcome struct {
	IntentID  string
	Succeeded bool
	Method    string // set on success
	Reason    string // set on failure
}
