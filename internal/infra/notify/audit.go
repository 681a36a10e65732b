package notify

import (
	"context"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.AuditSink = (*AuditSink)(nil)

// AuditSink writes the financial audit trail. The persistence of audit rows
// is an external collaborator; this sink emits structured entries that the
// log pipeline ships to it. Writes never fail the caller.
type AuditSink struct {
	log *zerolog.Logger
}

func NewAuditSink(logger *zerolog.Logger) *AuditSink {
	return &AuditSink{log: logger}
}

func (a *AuditSink) Record(ctx context.Context, action, entityType, entityID, note string) {
	a.log.Info().
		Str("audit", "true").
		Str("action", action).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Str("note", note).
		Msg("audit event")
}
