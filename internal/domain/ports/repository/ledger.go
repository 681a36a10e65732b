package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain/model"
)

// PaymentPlanRepository persists payment plans. Financial fields are only
// mutated through ApplyPayment inside a transaction owned by the recorder.
type PaymentPlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentPlan) error
	// FindByID loads a plan; inside a transaction the row is locked FOR UPDATE.
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentPlan, error)
	ListByStudent(ctx context.Context, tx Tx, studentID string) ([]*model.PaymentPlan, error)
	ListByCourse(ctx context.Context, tx Tx, courseID string) ([]*model.PaymentPlan, error)
	// ApplyPayment writes the new financial totals and status in one statement.
	ApplyPayment(ctx context.Context, tx Tx, id string, paid, balance decimal.Decimal, status model.PlanStatus) error
	// UpdateStatus forces a status without touching financial fields.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PlanStatus) error
}

// InstallmentRepository persists installments belonging to payment plans.
type InstallmentRepository interface {
	SaveAll(ctx context.Context, tx Tx, installments []*model.Installment) error
	// FindByID loads an installment; inside a transaction the row is locked FOR UPDATE.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Installment, error)
	ListByPlan(ctx context.Context, tx Tx, planID string) ([]*model.Installment, error)
	// MarkPaid transitions the row to paid only when it is still payable
	// (pending or overdue). Returns false when a concurrent writer won.
	MarkPaid(ctx context.Context, tx Tx, id string, paidDate time.Time, externalRef *string, remarks string) (bool, error)
	// SetReceipt records the issued receipt back-reference post-commit.
	SetReceipt(ctx context.Context, tx Tx, id, receiptID string) error
	// PromoteOverdue flips pending rows whose due date is before cutoff to
	// overdue and returns the number promoted. Paid rows are never touched.
	PromoteOverdue(ctx context.Context, tx Tx, cutoff time.Time) (int64, error)
	ListOverdue(ctx context.Context, tx Tx, asOf time.Time) ([]*model.Installment, error)
	ListDueBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Installment, error)
}
