package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/repository"
)

var _ repository.PaymentPlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, student_id, course_id, total_amount, paid_amount, balance_amount, installment_count, status, description, created_by, created_at, updated_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentPlan) error {
	const q = `
INSERT INTO payment_plans (
  id, student_id, course_id, total_amount, paid_amount, balance_amount, installment_count, status, description, created_by, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  student_id=$2, course_id=$3, total_amount=$4, paid_amount=$5, balance_amount=$6, installment_count=$7, status=$8, description=$9, created_by=$10, updated_at=$12;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, p.ID, p.StudentID, p.CourseID, p.TotalAmount, p.PaidAmount, p.BalanceAmount,
		p.InstallmentCount, p.Status, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentPlan, error) {
	q := `SELECT ` + planColumns + ` FROM payment_plans WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanPlan(ex.QueryRow(ctx, q, id))
}

func (r *planRepo) ListByStudent(ctx context.Context, tx repository.Tx, studentID string) ([]*model.PaymentPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM payment_plans WHERE student_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, studentID)
}

func (r *planRepo) ListByCourse(ctx context.Context, tx repository.Tx, courseID string) ([]*model.PaymentPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM payment_plans WHERE course_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, courseID)
}

func (r *planRepo) list(ctx context.Context, tx repository.Tx, q string, arg interface{}) ([]*model.PaymentPlan, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, arg)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ApplyPayment writes the new totals and status in a single statement so the
// balance invariant cannot be observed half-updated.
func (r *planRepo) ApplyPayment(ctx context.Context, tx repository.Tx, id string, paid, balance decimal.Decimal, status model.PlanStatus) error {
	const q = `UPDATE payment_plans SET paid_amount=$2, balance_amount=$3, status=$4, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	cmd, err := ex.Exec(ctx, q, id, paid, balance, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *planRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PlanStatus) error {
	const q = `UPDATE payment_plans SET status=$2, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	cmd, err := ex.Exec(ctx, q, id, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPlan(row pgx.Row) (*model.PaymentPlan, error) {
	p := &model.PaymentPlan{}
	err := row.Scan(&p.ID, &p.StudentID, &p.CourseID, &p.TotalAmount, &p.PaidAmount, &p.BalanceAmount,
		&p.InstallmentCount, &p.Status, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
