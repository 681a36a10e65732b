package notify

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.ReceiptIssuer = (*ReceiptIssuer)(nil)

// ReceiptIssuer assigns sortable receipt references and hands the document
// off to the rendering collaborator. Rendering itself is external; what the
// ledger needs back is only the opaque reference.
type ReceiptIssuer struct {
	log *zerolog.Logger
}

func NewReceiptIssuer(logger *zerolog.Logger) *ReceiptIssuer {
	return &ReceiptIssuer{log: logger}
}

func (r *ReceiptIssuer) Issue(ctx context.Context, studentID string, amount decimal.Decimal, kind, description string) (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	receiptID := "RCP-" + id.String()
	r.log.Info().Str("receipt_id", receiptID).Str("student_id", studentID).
		Str("amount", amount.StringFixed(2)).Str("kind", kind).Str("description", description).
		Msg("receipt issued")
	return receiptID, nil
}
