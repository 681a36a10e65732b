package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
	"school-payment-ledger/internal/infra/metrics"
)

// Compile-time check
var _ GatewayUseCase = (*gatewayUC)(nil)

// Locker fences concurrent processing of the same webhook intent. It is an
// optimization only; the conditional updates in Postgres remain the
// authoritative idempotency guard.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type CreateIntentInput struct {
	StudentID     string
	InstallmentID string
	Amount        decimal.Decimal
	Currency      string
}

type GatewayUseCase interface {
	// CreateIntent opens a payment intent at the gateway and records it as a
	// pending GatewayPaymentRecord. No internal retry: a gateway timeout
	// surfaces to the caller, who creates a fresh intent.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*model.GatewayPaymentRecord, string, error)
	// HandleOutcome reconciles a verified gateway event onto the ledger.
	// Redeliveries of the same intent id resolve to the already-applied
	// outcome without mutating money twice.
	HandleOutcome(ctx context.Context, outcome *model.PaymentOutcome) error
}

type gatewayUC struct {
	records      repository.GatewayPaymentRepository
	installments repository.InstallmentRepository
	gateway      adapter.PaymentGateway
	recorder     RecorderUseCase
	locker       Locker
	log          *zerolog.Logger
}

func NewGatewayUseCase(
	records repository.GatewayPaymentRepository,
	installments repository.InstallmentRepository,
	gateway adapter.PaymentGateway,
	recorder RecorderUseCase,
	locker Locker,
	logger *zerolog.Logger,
) *gatewayUC {
	return &gatewayUC{
		records:      records,
		installments: installments,
		gateway:      gateway,
		recorder:     recorder,
		locker:       locker,
		log:          logger,
	}
}

func (u *gatewayUC) CreateIntent(ctx context.Context, in CreateIntentInput) (*model.GatewayPaymentRecord, string, error) {
	if in.StudentID == "" || in.InstallmentID == "" || !in.Amount.IsPositive() || in.Currency == "" {
		return nil, "", domain.ErrInvalidArgument
	}

	inst, err := u.installments.FindByID(ctx, repository.NoTX, in.InstallmentID)
	if err != nil {
		return nil, "", err
	}
	if !inst.Payable() {
		return nil, "", fmt.Errorf("installment %s is not payable: %w", inst.ID, domain.ErrInvalidArgument)
	}

	intentID, clientSecret, err := u.gateway.CreateIntent(ctx, adapter.CreateIntentRequest{
		StudentID:     in.StudentID,
		InstallmentID: in.InstallmentID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Description:   fmt.Sprintf("installment %d", inst.InstallmentNumber),
	})
	if err != nil {
		metrics.IncGatewayIntent("error")
		return nil, "", fmt.Errorf("create intent: %w", err)
	}

	now := time.Now().UTC()
	rec := &model.GatewayPaymentRecord{
		ID:               uuid.NewString(),
		ExternalIntentID: intentID,
		StudentID:        in.StudentID,
		InstallmentID:    &in.InstallmentID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Status:           model.GatewayPaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := u.records.Save(ctx, repository.NoTX, rec); err != nil {
		return nil, "", err
	}

	metrics.IncGatewayIntent("ok")
	u.log.Info().Str("intent_id", intentID).Str("installment_id", in.InstallmentID).Msg("gateway intent created")
	return rec, clientSecret, nil
}

func (u *gatewayUC) HandleOutcome(ctx context.Context, outcome *model.PaymentOutcome) error {
	if outcome == nil || outcome.IntentID == "" {
		return domain.ErrInvalidArgument
	}

	// Serialize concurrent redeliveries of the same intent. Lock failure is
	// tolerated: the store-level guards still hold.
	lockKey := "gw:intent:" + outcome.IntentID
	if token, err := u.locker.TryLock(ctx, lockKey, 30*time.Second); err == nil {
		defer func() { _ = u.locker.Unlock(ctx, lockKey, token) }()
	} else {
		u.log.Debug().Str("intent_id", outcome.IntentID).Msg("webhook fence unavailable; relying on store guards")
	}

	rec, err := u.records.FindByIntentID(ctx, repository.NoTX, outcome.IntentID)
	if err != nil {
		return err
	}

	if !outcome.Succeeded {
		ok, err := u.records.MarkFailedIfPending(ctx, repository.NoTX, outcome.IntentID, outcome.Reason)
		if err != nil {
			return err
		}
		if !ok {
			metrics.IncWebhookEvent("duplicate")
			return nil
		}
		metrics.IncWebhookEvent("failed")
		u.log.Info().Str("intent_id", outcome.IntentID).Str("reason", outcome.Reason).Msg("gateway payment failed")
		return nil
	}

	now := time.Now().UTC()
	marked, err := u.records.MarkPaidIfPending(ctx, repository.NoTX, outcome.IntentID, outcome.Method, now)
	if err != nil {
		return err
	}
	switch {
	case marked:
		metrics.IncWebhookEvent("succeeded")
	case rec.Status == model.GatewayPaymentStatusFailed:
		// Success after a recorded failure should not happen; keep the record
		// terminal and surface it for investigation.
		u.log.Warn().Str("intent_id", outcome.IntentID).Msg("succeeded event for a failed gateway record")
		metrics.IncWebhookEvent("duplicate")
		return nil
	default:
		metrics.IncWebhookEvent("duplicate")
	}

	if rec.InstallmentID == nil {
		u.log.Warn().Str("intent_id", outcome.IntentID).Msg("paid intent has no linked installment")
		return nil
	}

	// The recorder's own idempotence guards the installment even when this
	// handler runs twice concurrently for the same intent.
	_, err = u.recorder.Record(ctx, RecordPaymentInput{
		InstallmentID: *rec.InstallmentID,
		Amount:        rec.Amount,
		Method:        outcome.Method,
		ExternalRef:   &rec.ExternalIntentID,
		RecordedBy:    u.gateway.Name(),
	})
	if errors.Is(err, domain.ErrNotFound) {
		// Redelivery cannot fix a dangling installment reference; keep the
		// money trail in the gateway record and stop retrying.
		u.log.Error().Str("intent_id", outcome.IntentID).Str("installment_id", *rec.InstallmentID).
			Msg("paid intent references a missing installment")
		return nil
	}
	return err
}
