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

var _ repository.GatewayPaymentRepository = (*gatewayPaymentRepo)(nil)

type gatewayPaymentRepo struct{ pool *pgxpool.Pool }

func NewGatewayPaymentRepo(pool *pgxpool.Pool) *gatewayPaymentRepo {
	return &gatewayPaymentRepo{pool: pool}
}

const gatewayColumns = `id, external_intent_id, student_id, installment_id, amount, currency, status, payment_method, error_message, created_at, updated_at, paid_at`

func (r *gatewayPaymentRepo) Save(ctx context.Context, tx repository.Tx, rec *model.GatewayPaymentRecord) error {
	const q = `
INSERT INTO gateway_payments (
  id, external_intent_id, student_id, installment_id, amount, currency, status, payment_method, error_message, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  installment_id=$4, status=$7, payment_method=$8, error_message=$9, updated_at=$11, paid_at=$12;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, rec.ID, rec.ExternalIntentID, rec.StudentID, rec.InstallmentID, rec.Amount,
		rec.Currency, rec.Status, rec.PaymentMethod, rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt, rec.PaidAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *gatewayPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.GatewayPaymentRecord, error) {
	q := `SELECT ` + gatewayColumns + ` FROM gateway_payments WHERE external_intent_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanGatewayPayment(ex.QueryRow(ctx, q, intentID))
}

// MarkPaidIfPending atomically transitions the record only out of pending.
// A false return means a previous delivery already settled the record.
func (r *gatewayPaymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, intentID, method string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE gateway_payments
   SET status = 'paid',
       payment_method = $2,
       paid_at = $3,
       updated_at = NOW()
 WHERE external_intent_id = $1
   AND status = 'pending';`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	cmd, err := ex.Exec(ctx, q, intentID, method, paidAt)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *gatewayPaymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, intentID, reason string) (bool, error) {
	const q = `
UPDATE gateway_payments
   SET status = 'failed',
       error_message = $2,
       updated_at = NOW()
 WHERE external_intent_id = $1
   AND status = 'pending';`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	cmd, err := ex.Exec(ctx, q, intentID, reason)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *gatewayPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.GatewayPaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + gatewayColumns + ` FROM gateway_payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.GatewayPaymentRecord
	for rows.Next() {
		rec, err := scanGatewayPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func scanGatewayPayment(row pgx.Row) (*model.GatewayPaymentRecord, error) {
	rec := &model.GatewayPaymentRecord{}
	err := row.Scan(&rec.ID, &rec.ExternalIntentID, &rec.StudentID, &rec.InstallmentID, &rec.Amount,
		&rec.Currency, &rec.Status, &rec.PaymentMethod, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt, &rec.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rec, nil
}
