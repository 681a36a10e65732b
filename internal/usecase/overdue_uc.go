package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/repository"
	"school-payment-ledger/internal/infra/metrics"
)

// Compile-time check
var _ OverdueUseCase = (*overdueUC)(nil)

type OverdueUseCase interface {
	// Sweep promotes pending installments whose due date passed more than
	// thresholdDays ago to overdue and returns the number promoted.
	// Re-running is a no-op: the promotion query excludes non-pending rows.
	Sweep(ctx context.Context, thresholdDays int) (int64, error)
	ListOverdue(ctx context.Context) ([]*model.Installment, error)
	// ListUpcoming returns pending installments due within the next `days`.
	ListUpcoming(ctx context.Context, days int) ([]*model.Installment, error)
}

type overdueUC struct {
	installments repository.InstallmentRepository
	log          *zerolog.Logger
}

func NewOverdueUseCase(installments repository.InstallmentRepository, logger *zerolog.Logger) *overdueUC {
	return &overdueUC{installments: installments, log: logger}
}

func (u *overdueUC) Sweep(ctx context.Context, thresholdDays int) (int64, error) {
	if thresholdDays < 0 {
		return 0, domain.ErrInvalidArgument
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays)
	n, err := u.installments.PromoteOverdue(ctx, repository.NoTX, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddOverduePromotions(n)
		u.log.Info().Int64("promoted", n).Int("threshold_days", thresholdDays).Msg("overdue sweep")
	}
	return n, nil
}

func (u *overdueUC) ListOverdue(ctx context.Context) ([]*model.Installment, error) {
	return u.installments.ListOverdue(ctx, repository.NoTX, time.Now().UTC())
}

func (u *overdueUC) ListUpcoming(ctx context.Context, days int) ([]*model.Installment, error) {
	if days < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return u.installments.ListDueBetween(ctx, repository.NoTX, now, now.AddDate(0, 0, days))
}
