package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/usecase"
)

// OverdueSweeper periodically promotes past-due pending installments to
// overdue. The sweep itself is idempotent, so overlapping runs are harmless.
type OverdueSweeper struct {
	uc            usecase.OverdueUseCase
	interval      time.Duration
	thresholdDays int
	log           *zerolog.Logger
}

func NewOverdueSweeper(uc usecase.OverdueUseCase, interval time.Duration, thresholdDays int, logger *zerolog.Logger) *OverdueSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if thresholdDays < 0 {
		thresholdDays = 0
	}
	return &OverdueSweeper{uc: uc, interval: interval, thresholdDays: thresholdDays, log: logger}
}

func (w *OverdueSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *OverdueSweeper) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := w.uc.Sweep(runCtx, w.thresholdDays)
	if err != nil {
		w.log.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("promoted", n).Msg("overdue sweep promoted installments")
	}
}
