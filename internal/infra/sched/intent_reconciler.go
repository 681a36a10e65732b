package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
	"school-payment-ledger/internal/usecase"
)

// IntentReconciler scans for gateway records stuck pending longer than
// staleAfter and asks the provider for their outcome directly. This covers
// webhooks that were lost or delivered while the process was down; the
// outcome flows through the same reconciliation path a webhook would take.
type IntentReconciler struct {
	uc         usecase.GatewayUseCase
	records    repository.GatewayPaymentRepository
	gateway    adapter.PaymentGateway
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewIntentReconciler(
	uc usecase.GatewayUseCase,
	records repository.GatewayPaymentRepository,
	gateway adapter.PaymentGateway,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *IntentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &IntentReconciler{
		uc:         uc,
		records:    records,
		gateway:    gateway,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
	}
}

func (w *IntentReconciler) Start(ctx context.Context) {
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

func (w *IntentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.records.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("intent reconciler: list pending failed")
		return
	}
	for _, rec := range pending {
		outcome, err := w.gateway.QueryIntent(ctx, rec.ExternalIntentID)
		if err != nil {
			w.log.Warn().Err(err).Str("intent_id", rec.ExternalIntentID).Msg("intent reconciler: query failed")
			continue
		}
		if outcome == nil {
			// still pending at the provider; try again next tick
			continue
		}
		if err := w.uc.HandleOutcome(ctx, outcome); err != nil {
			w.log.Error().Err(err).Str("intent_id", rec.ExternalIntentID).Msg("intent reconciler: reconcile failed")
			continue
		}
		w.log.Info().Str("intent_id", rec.ExternalIntentID).Bool("succeeded", outcome.Succeeded).
			Msg("intent reconciler: reconciled stale intent")
	}
}
