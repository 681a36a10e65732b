package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/repository"
)

var _ repository.InstallmentRepository = (*installmentRepo)(nil)

type installmentRepo struct{ pool *pgxpool.Pool }

func NewInstallmentRepo(pool *pgxpool.Pool) *installmentRepo {
	return &installmentRepo{pool: pool}
}

const installmentColumns = `id, payment_plan_id, installment_number, amount, due_date, paid_date, status, receipt_id, external_payment_ref, remarks, created_at, updated_at`

func (r *installmentRepo) SaveAll(ctx context.Context, tx repository.Tx, installments []*model.Installment) error {
	const q = `
INSERT INTO installments (
  id, payment_plan_id, installment_number, amount, due_date, paid_date, status, receipt_id, external_payment_ref, remarks, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  due_date=$5, paid_date=$6, status=$7, receipt_id=$8, external_payment_ref=$9, remarks=$10, updated_at=$12;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	for _, i := range installments {
		if _, err := ex.Exec(ctx, q, i.ID, i.PaymentPlanID, i.InstallmentNumber, i.Amount, i.DueDate,
			i.PaidDate, i.Status, i.ReceiptID, i.ExternalPaymentRef, i.Remarks, i.CreatedAt, i.UpdatedAt); err != nil {
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *installmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Installment, error) {
	q := `SELECT ` + installmentColumns + ` FROM installments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanInstallment(ex.QueryRow(ctx, q, id))
}

func (r *installmentRepo) ListByPlan(ctx context.Context, tx repository.Tx, planID string) ([]*model.Installment, error) {
	const q = `SELECT ` + installmentColumns + ` FROM installments WHERE payment_plan_id=$1 ORDER BY installment_number ASC;`
	return r.list(ctx, tx, q, planID)
}

// MarkPaid flips the row to paid only while it is still payable. RowsAffected
// decides the winner when two confirmations race for the same installment.
func (r *installmentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, paidDate time.Time, externalRef *string, remarks string) (bool, error) {
	const q = `
UPDATE installments
   SET status = 'paid',
       paid_date = $2,
       external_payment_ref = COALESCE($3, external_payment_ref),
       remarks = CASE WHEN $4 <> '' THEN $4 ELSE remarks END,
       updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','overdue');`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	cmd, err := ex.Exec(ctx, q, id, paidDate, externalRef, remarks)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *installmentRepo) SetReceipt(ctx context.Context, tx repository.Tx, id, receiptID string) error {
	const q = `UPDATE installments SET receipt_id=$2, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, id, receiptID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// PromoteOverdue only selects pending rows, which makes re-running it a no-op
// and leaves paid installments untouched by construction.
func (r *installmentRepo) PromoteOverdue(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	const q = `
UPDATE installments
   SET status = 'overdue', updated_at = NOW()
 WHERE status = 'pending'
   AND due_date < $1;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	cmd, err := ex.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

func (r *installmentRepo) ListOverdue(ctx context.Context, tx repository.Tx, asOf time.Time) ([]*model.Installment, error) {
	const q = `SELECT ` + installmentColumns + ` FROM installments WHERE status='overdue' OR (status='pending' AND due_date < $1) ORDER BY due_date ASC;`
	return r.list(ctx, tx, q, asOf)
}

func (r *installmentRepo) ListDueBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Installment, error) {
	const q = `SELECT ` + installmentColumns + ` FROM installments WHERE status='pending' AND due_date >= $1 AND due_date <= $2 ORDER BY due_date ASC;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, from, to)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func (r *installmentRepo) list(ctx context.Context, tx repository.Tx, q string, arg interface{}) ([]*model.Installment, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, arg)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func collectInstallments(rows pgx.Rows) ([]*model.Installment, error) {
	var out []*model.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func scanInstallment(row pgx.Row) (*model.Installment, error) {
	i := &model.Installment{}
	err := row.Scan(&i.ID, &i.PaymentPlanID, &i.InstallmentNumber, &i.Amount, &i.DueDate, &i.PaidDate,
		&i.Status, &i.ReceiptID, &i.ExternalPaymentRef, &i.Remarks, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return i, nil
}
