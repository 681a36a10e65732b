package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// CreatePlanInput carries the request to open a payment plan.
type CreatePlanInput struct {
	StudentID        string
	CourseID         *string
	TotalAmount      decimal.Decimal
	InstallmentCount int
	FirstDueDate     time.Time // zero value defaults to today
	Description      string
	CreatedBy        string
}

type PlanUseCase interface {
	// Create persists the plan and its generated installments atomically.
	Create(ctx context.Context, in CreatePlanInput) (*model.PaymentPlan, []*model.Installment, error)
	Get(ctx context.Context, id string) (*model.PaymentPlan, []*model.Installment, error)
	ListByStudent(ctx context.Context, studentID string) ([]*model.PaymentPlan, error)
	ListByCourse(ctx context.Context, courseID string) ([]*model.PaymentPlan, error)
	// ForceStatus applies an administrative status change. It never touches
	// financial fields and refuses transitions the state machine disallows.
	ForceStatus(ctx context.Context, id string, status model.PlanStatus, changedBy string) (*model.PaymentPlan, error)
}

type planUC struct {
	plans        repository.PaymentPlanRepository
	installments repository.InstallmentRepository
	tm           repository.TransactionManager
	audit        adapter.AuditSink
	log          *zerolog.Logger
}

func NewPlanUseCase(
	plans repository.PaymentPlanRepository,
	installments repository.InstallmentRepository,
	tm repository.TransactionManager,
	audit adapter.AuditSink,
	logger *zerolog.Logger,
) *planUC {
	return &planUC{plans: plans, installments: installments, tm: tm, audit: audit, log: logger}
}

func (u *planUC) Create(ctx context.Context, in CreatePlanInput) (*model.PaymentPlan, []*model.Installment, error) {
	if in.StudentID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	firstDue := in.FirstDueDate
	if firstDue.IsZero() {
		firstDue = time.Now().UTC().Truncate(24 * time.Hour)
	}

	rows, err := BuildSchedule(in.TotalAmount, in.InstallmentCount, firstDue)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	plan := &model.PaymentPlan{
		ID:               uuid.NewString(),
		StudentID:        in.StudentID,
		CourseID:         in.CourseID,
		TotalAmount:      in.TotalAmount,
		PaidAmount:       decimal.Zero,
		BalanceAmount:    in.TotalAmount,
		InstallmentCount: in.InstallmentCount,
		Status:           model.PlanStatusActive,
		Description:      in.Description,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	installments := make([]*model.Installment, 0, len(rows))
	for _, r := range rows {
		installments = append(installments, &model.Installment{
			ID:                uuid.NewString(),
			PaymentPlanID:     plan.ID,
			InstallmentNumber: r.Number,
			Amount:            r.Amount,
			DueDate:           r.DueDate,
			Status:            model.InstallmentStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.plans.Save(ctx, tx, plan); err != nil {
			return err
		}
		return u.installments.SaveAll(ctx, tx, installments)
	})
	if err != nil {
		return nil, nil, err
	}

	u.audit.Record(ctx, "plan.created", "payment_plan", plan.ID,
		fmt.Sprintf("student=%s total=%s installments=%d by=%s",
			plan.StudentID, plan.TotalAmount.StringFixed(2), plan.InstallmentCount, plan.CreatedBy))
	u.log.Info().Str("plan_id", plan.ID).Str("student_id", plan.StudentID).
		Int("installments", len(installments)).Msg("payment plan created")
	return plan, installments, nil
}

func (u *planUC) Get(ctx context.Context, id string) (*model.PaymentPlan, []*model.Installment, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, nil, err
	}
	installments, err := u.installments.ListByPlan(ctx, repository.NoTX, id)
	if err != nil {
		return nil, nil, err
	}
	return plan, installments, nil
}

func (u *planUC) ListByStudent(ctx context.Context, studentID string) ([]*model.PaymentPlan, error) {
	if studentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.plans.ListByStudent(ctx, repository.NoTX, studentID)
}

func (u *planUC) ListByCourse(ctx context.Context, courseID string) ([]*model.PaymentPlan, error) {
	if courseID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.plans.ListByCourse(ctx, repository.NoTX, courseID)
}

func (u *planUC) ForceStatus(ctx context.Context, id string, status model.PlanStatus, changedBy string) (*model.PaymentPlan, error) {
	switch status {
	case model.PlanStatusActive, model.PlanStatusSuspended, model.PlanStatusDefaulted, model.PlanStatusCancelled:
	default:
		// completed is only reachable through recorded payments
		return nil, domain.ErrInvalidArgument
	}

	var plan *model.PaymentPlan
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanTransition(status) {
			return domain.ErrInvalidArgument
		}
		if err := u.plans.UpdateStatus(ctx, tx, id, status); err != nil {
			return err
		}
		p.Status = status
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.audit.Record(ctx, "plan.status_forced", "payment_plan", id,
		fmt.Sprintf("status=%s by=%s", status, changedBy))
	return plan, nil
}
