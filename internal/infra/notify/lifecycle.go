package notify

import (
	"context"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.StudentLifecycle = (*StudentLifecycle)(nil)

// StudentLifecycle notifies the student-management collaborator that a
// student's first payment landed so their enrollment can advance.
type StudentLifecycle struct {
	log *zerolog.Logger
}

func NewStudentLifecycle(logger *zerolog.Logger) *StudentLifecycle {
	return &StudentLifecycle{log: logger}
}

func (s *StudentLifecycle) AdvanceFromPendingPayment(ctx context.Context, studentID string) error {
	s.log.Info().Str("student_id", studentID).Msg("advancing student from pending-payment to enrolled")
	return nil
}
