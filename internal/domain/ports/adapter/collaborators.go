package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReceiptIssuer produces a receipt document for a recorded payment and
// returns an opaque receipt reference. Issuance is best-effort: a failure
// after a committed payment is logged and audited, never rolled back.
type ReceiptIssuer interface {
	Issue(ctx context.Context, studentID string, amount decimal.Decimal, kind, description string) (receiptID string, err error)
}

// StudentLifecycle advances a student out of the awaiting-payment state once
// the first payment on a plan lands.
type StudentLifecycle interface {
	AdvanceFromPendingPayment(ctx context.Context, studentID string) error
}

// AuditSink is a fire-and-forget write sink for financial audit events.
type AuditSink interface {
	Record(ctx context.Context, action, entityType, entityID, note string)
}
