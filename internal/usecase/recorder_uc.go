package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
	"school-payment-ledger/internal/infra/metrics"
)

// Compile-time check
var _ RecorderUseCase = (*recorderUC)(nil)

// Runner executes post-commit side effects off the request path.
type Runner interface {
	Submit(task func(ctx context.Context) error) error
}

// RecordPaymentInput describes one confirmed payment to apply to an installment.
type RecordPaymentInput struct {
	InstallmentID string
	Amount        decimal.Decimal
	Method        string
	ExternalRef   *string // gateway intent id when the payment came via webhook
	Remarks       string
	RecordedBy    string
}

// RecorderUseCase is the single choke point through which every confirmed
// payment mutates the ledger, regardless of whether it arrived from an admin
// or a gateway webhook.
type RecorderUseCase interface {
	// Record applies the payment exactly once. Calling it again for an
	// already-paid installment returns the existing state unchanged; this is
	// the idempotence contract that makes admin and webhook paths safe to race.
	Record(ctx context.Context, in RecordPaymentInput) (*model.Installment, error)
}

type recorderUC struct {
	plans        repository.PaymentPlanRepository
	installments repository.InstallmentRepository
	tm           repository.TransactionManager
	receipts     adapter.ReceiptIssuer
	students     adapter.StudentLifecycle
	audit        adapter.AuditSink
	runner       Runner
	epsilon      decimal.Decimal // overpay tolerance absorbing rounding on the last installment
	maxAttempts  int
	log          *zerolog.Logger
}

func NewRecorderUseCase(
	plans repository.PaymentPlanRepository,
	installments repository.InstallmentRepository,
	tm repository.TransactionManager,
	receipts adapter.ReceiptIssuer,
	students adapter.StudentLifecycle,
	audit adapter.AuditSink,
	runner Runner,
	epsilon decimal.Decimal,
	logger *zerolog.Logger,
) *recorderUC {
	if epsilon.IsNegative() {
		epsilon = decimal.Zero
	}
	return &recorderUC{
		plans:        plans,
		installments: installments,
		tm:           tm,
		receipts:     receipts,
		students:     students,
		audit:        audit,
		runner:       runner,
		epsilon:      epsilon,
		maxAttempts:  3,
		log:          logger,
	}
}

type recordResult struct {
	installment  *model.Installment
	plan         *model.PaymentPlan
	applied      bool
	firstPayment bool
}

func (u *recorderUC) Record(ctx context.Context, in RecordPaymentInput) (*model.Installment, error) {
	if in.InstallmentID == "" || !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}

	var res recordResult
	var err error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		res, err = u.attempt(ctx, in)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			u.countFailure(err)
			return nil, err
		}
		metrics.IncRecorderRetry()
		u.log.Warn().Str("installment_id", in.InstallmentID).Int("attempt", attempt).
			Msg("payment recording lost a concurrent write; retrying")
	}
	if err != nil {
		metrics.IncPaymentRecorded("conflict")
		return nil, err
	}

	if !res.applied {
		metrics.IncPaymentRecorded("noop")
		return res.installment, nil
	}

	metrics.IncPaymentRecorded("applied")
	amt, _ := in.Amount.Float64()
	metrics.AddPaymentAmount(in.Method, amt)
	u.afterCommit(ctx, in, res)
	return res.installment, nil
}

// attempt runs one transactional read-modify-write pass over the installment
// and its plan. Both rows are locked FOR UPDATE for the duration.
func (u *recorderUC) attempt(ctx context.Context, in RecordPaymentInput) (recordResult, error) {
	var res recordResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		inst, err := u.installments.FindByID(ctx, tx, in.InstallmentID)
		if err != nil {
			return err
		}

		if inst.Status == model.InstallmentStatusPaid {
			// Idempotent no-op: duplicate webhook delivery or a repeated admin
			// click lands here. A differing external reference is reported but
			// never re-applies money.
			if in.ExternalRef != nil && inst.ExternalPaymentRef != nil && *in.ExternalRef != *inst.ExternalPaymentRef {
				u.log.Warn().Str("installment_id", inst.ID).
					Str("recorded_ref", *inst.ExternalPaymentRef).
					Str("incoming_ref", *in.ExternalRef).
					Msg("duplicate payment with conflicting external reference")
				u.audit.Record(ctx, "payment.ref_conflict", "installment", inst.ID,
					fmt.Sprintf("incoming ref %s differs from recorded %s", *in.ExternalRef, *inst.ExternalPaymentRef))
			}
			res.installment = inst
			return nil
		}

		plan, err := u.plans.FindByID(ctx, tx, inst.PaymentPlanID)
		if err != nil {
			return err
		}

		newPaid := plan.PaidAmount.Add(in.Amount)
		newBalance := plan.TotalAmount.Sub(newPaid)
		if newBalance.IsNegative() {
			if newBalance.Abs().GreaterThan(u.epsilon) {
				return domain.ErrOverpayment
			}
			// Within tolerance: absorb the rounding spill and close the plan
			// at exactly zero so the balance invariant keeps holding.
			newPaid = plan.TotalAmount
			newBalance = decimal.Zero
		}

		now := time.Now().UTC()
		ok, err := u.installments.MarkPaid(ctx, tx, inst.ID, now, in.ExternalRef, in.Remarks)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent writer flipped the row between our read and write.
			return domain.ErrConcurrencyConflict
		}

		status := plan.Status
		if newBalance.IsZero() {
			status = model.PlanStatusCompleted
		}
		if err := u.plans.ApplyPayment(ctx, tx, plan.ID, newPaid, newBalance, status); err != nil {
			return err
		}

		res.firstPayment = plan.PaidAmount.IsZero()
		inst.Status = model.InstallmentStatusPaid
		inst.PaidDate = &now
		inst.ExternalPaymentRef = in.ExternalRef
		if in.Remarks != "" {
			inst.Remarks = in.Remarks
		}
		plan.PaidAmount = newPaid
		plan.BalanceAmount = newBalance
		plan.Status = status
		res.installment = inst
		res.plan = plan
		res.applied = true
		return nil
	})
	return res, err
}

// afterCommit runs the downstream effects of a successfully committed payment.
// Failures here are logged and audited, never rolled back into the ledger:
// the money is real, the side effects are best-effort.
func (u *recorderUC) afterCommit(ctx context.Context, in RecordPaymentInput, res recordResult) {
	inst, plan := res.installment, res.plan

	receiptID, err := u.receipts.Issue(ctx, plan.StudentID, in.Amount, "installment_payment",
		fmt.Sprintf("installment %d of plan %s", inst.InstallmentNumber, plan.ID))
	if err != nil {
		metrics.IncReceiptIssued("error")
		u.log.Error().Err(err).Str("installment_id", inst.ID).Msg("receipt issuance failed after committed payment")
		u.audit.Record(ctx, "receipt.issue_failed", "installment", inst.ID, err.Error())
	} else {
		metrics.IncReceiptIssued("ok")
		if err := u.installments.SetReceipt(ctx, repository.NoTX, inst.ID, receiptID); err != nil {
			u.log.Error().Err(err).Str("installment_id", inst.ID).Str("receipt_id", receiptID).
				Msg("failed to link receipt to installment")
		} else {
			inst.ReceiptID = &receiptID
		}
	}

	if res.firstPayment {
		studentID := plan.StudentID
		if err := u.runner.Submit(func(ctx context.Context) error {
			return u.students.AdvanceFromPendingPayment(ctx, studentID)
		}); err != nil {
			u.log.Error().Err(err).Str("student_id", studentID).Msg("could not enqueue student advancement")
		}
	}

	action, amount := "payment.recorded", in.Amount.StringFixed(2)
	if err := u.runner.Submit(func(ctx context.Context) error {
		u.audit.Record(ctx, action, "installment", inst.ID,
			fmt.Sprintf("amount=%s method=%s by=%s", amount, in.Method, in.RecordedBy))
		return nil
	}); err != nil {
		// Fall back to recording inline rather than losing the trail.
		u.audit.Record(ctx, action, "installment", inst.ID,
			fmt.Sprintf("amount=%s method=%s by=%s", amount, in.Method, in.RecordedBy))
	}
}

func (u *recorderUC) countFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrOverpayment):
		metrics.IncPaymentRecorded("overpayment")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncPaymentRecorded("not_found")
	default:
		metrics.IncPaymentRecorded("error")
	}
}
