package repository

import (
	"context"
	"time"

	"school-payment-ledger/internal/domain/model"
)

// GatewayPaymentRepository persists gateway payment records. ExternalIntentID
// carries a unique constraint and is the webhook dedup key.
type GatewayPaymentRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.GatewayPaymentRecord) error
	// FindByIntentID loads a record by the gateway-assigned intent id; inside
	// a transaction the row is locked FOR UPDATE.
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.GatewayPaymentRecord, error)
	// MarkPaidIfPending transitions the record to paid only from pending.
	// Returns false when the record was already terminal (idempotent path).
	MarkPaidIfPending(ctx context.Context, tx Tx, intentID, method string, paidAt time.Time) (bool, error)
	// MarkFailedIfPending transitions the record to failed only from pending.
	MarkFailedIfPending(ctx context.Context, tx Tx, intentID, reason string) (bool, error)
	// ListPendingOlderThan returns stale pending records for reconciliation.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.GatewayPaymentRecord, error)
}
