//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
	"school-payment-ledger/internal/domain/ports/repository"
	"school-payment-ledger/internal/usecase"
)

type gatewayFixture struct {
	*recorderFixture
	records *MockGatewayPaymentRepo
	gw      *MockPaymentGateway
	uc      usecase.GatewayUseCase
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	base := newRecorderFixture(t, "0.01")
	f := &gatewayFixture{
		recorderFixture: base,
		records:         NewMockGatewayPaymentRepo(),
		gw:              &MockPaymentGateway{},
	}
	f.uc = usecase.NewGatewayUseCase(f.records, f.insts, f.gw, base.uc, mockLocker{}, newTestLogger())
	return f
}

func TestGatewayUC_CreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("creates intent and pending record", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, insts := f.seedPlan(t, "300.00", "0.00", "300.00")

		// --- Act ---
		rec, secret, err := f.uc.CreateIntent(ctx, usecase.CreateIntentInput{
			StudentID:     plan.StudentID,
			InstallmentID: insts[0].ID,
			Amount:        insts[0].Amount,
			Currency:      "USD",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("CreateIntent() error = %v", err)
		}
		if rec.ExternalIntentID == "" || secret == "" {
			t.Fatal("expected intent id and client secret")
		}
		stored, err := f.records.FindByIntentID(ctx, repository.NoTX, rec.ExternalIntentID)
		if err != nil {
			t.Fatalf("record not persisted: %v", err)
		}
		if stored.Status != model.GatewayPaymentStatusPending {
			t.Errorf("record status = %s, want pending", stored.Status)
		}
		if stored.InstallmentID == nil || *stored.InstallmentID != insts[0].ID {
			t.Error("record not linked to the installment")
		}
	})

	t.Run("rejects intent for a paid installment", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, insts := f.seedPlan(t, "300.00", "0.00", "300.00")
		if _, err := f.recorderFixture.uc.Record(ctx, usecase.RecordPaymentInput{
			InstallmentID: insts[0].ID,
			Amount:        insts[0].Amount,
			Method:        "cash",
			RecordedBy:    "admin",
		}); err != nil {
			t.Fatalf("seed payment: %v", err)
		}

		// --- Act ---
		_, _, err := f.uc.CreateIntent(ctx, usecase.CreateIntentInput{
			StudentID:     plan.StudentID,
			InstallmentID: insts[0].ID,
			Amount:        insts[0].Amount,
			Currency:      "USD",
		})

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("gateway failure surfaces without a record", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, insts := f.seedPlan(t, "300.00", "0.00", "300.00")
		f.gw.CreateIntentFunc = func(ctx context.Context, req adapter.CreateIntentRequest) (string, string, error) {
			return "", "", domain.ErrGatewayUnavailable
		}

		// --- Act ---
		_, _, err := f.uc.CreateIntent(ctx, usecase.CreateIntentInput{
			StudentID:     plan.StudentID,
			InstallmentID: insts[0].ID,
			Amount:        insts[0].Amount,
			Currency:      "USD",
		})

		// --- Assert ---
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		f := newGatewayFixture(t)
		_, _, err := f.uc.CreateIntent(ctx, usecase.CreateIntentInput{
			StudentID: "s", InstallmentID: "i", Amount: decimal.Zero, Currency: "USD",
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestGatewayUC_HandleOutcome(t *testing.T) {
	ctx := context.Background()

	// createIntent opens an intent for the first pending installment of a fresh plan.
	createIntent := func(t *testing.T, f *gatewayFixture, planTotal string, amounts ...string) (*model.PaymentPlan, *model.Installment, *model.GatewayPaymentRecord) {
		t.Helper()
		plan, insts := f.seedPlan(t, planTotal, "0.00", amounts...)
		rec, _, err := f.uc.CreateIntent(ctx, usecase.CreateIntentInput{
			StudentID:     plan.StudentID,
			InstallmentID: insts[0].ID,
			Amount:        insts[0].Amount,
			Currency:      "USD",
		})
		if err != nil {
			t.Fatalf("CreateIntent(): %v", err)
		}
		return plan, insts[0], rec
	}

	t.Run("succeeded outcome settles the installment", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, inst, rec := createIntent(t, f, "600.00", "300.00", "300.00")

		// --- Act ---
		err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{
			IntentID:  rec.ExternalIntentID,
			Succeeded: true,
			Method:    "card",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("HandleOutcome() error = %v", err)
		}
		storedRec, _ := f.records.FindByIntentID(ctx, repository.NoTX, rec.ExternalIntentID)
		if storedRec.Status != model.GatewayPaymentStatusPaid {
			t.Errorf("record status = %s, want paid", storedRec.Status)
		}
		storedInst, _ := f.insts.FindByID(ctx, repository.NoTX, inst.ID)
		if storedInst.Status != model.InstallmentStatusPaid {
			t.Errorf("installment status = %s, want paid", storedInst.Status)
		}
		if storedInst.ExternalPaymentRef == nil || *storedInst.ExternalPaymentRef != rec.ExternalIntentID {
			t.Error("installment not stamped with the intent id")
		}
		storedPlan, _ := f.plans.FindByID(ctx, repository.NoTX, plan.ID)
		if !storedPlan.PaidAmount.Equal(decimal.RequireFromString("300.00")) {
			t.Errorf("plan paid = %s, want 300.00", storedPlan.PaidAmount)
		}
	})

	t.Run("redelivered success mutates money exactly once", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, _, rec := createIntent(t, f, "600.00", "300.00", "300.00")
		outcome := &model.PaymentOutcome{IntentID: rec.ExternalIntentID, Succeeded: true, Method: "card"}

		// --- Act ---
		for i := 0; i < 3; i++ {
			if err := f.uc.HandleOutcome(ctx, outcome); err != nil {
				t.Fatalf("HandleOutcome() delivery %d error = %v", i+1, err)
			}
		}

		// --- Assert ---
		storedPlan, _ := f.plans.FindByID(ctx, repository.NoTX, plan.ID)
		if !storedPlan.PaidAmount.Equal(decimal.RequireFromString("300.00")) {
			t.Errorf("plan paid = %s after redeliveries, want 300.00", storedPlan.PaidAmount)
		}
		if f.receipts.Issued != 1 {
			t.Errorf("receipts issued = %d, want 1", f.receipts.Issued)
		}
	})

	t.Run("failed outcome leaves the ledger untouched", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		plan, inst, rec := createIntent(t, f, "300.00", "300.00")

		// --- Act ---
		err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{
			IntentID: rec.ExternalIntentID,
			Reason:   "card_declined",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("HandleOutcome() error = %v", err)
		}
		storedRec, _ := f.records.FindByIntentID(ctx, repository.NoTX, rec.ExternalIntentID)
		if storedRec.Status != model.GatewayPaymentStatusFailed {
			t.Errorf("record status = %s, want failed", storedRec.Status)
		}
		if storedRec.ErrorMessage != "card_declined" {
			t.Errorf("record error = %q, want card_declined", storedRec.ErrorMessage)
		}
		storedInst, _ := f.insts.FindByID(ctx, repository.NoTX, inst.ID)
		if storedInst.Status != model.InstallmentStatusPending {
			t.Errorf("installment status = %s, want pending", storedInst.Status)
		}
		storedPlan, _ := f.plans.FindByID(ctx, repository.NoTX, plan.ID)
		if !storedPlan.PaidAmount.IsZero() {
			t.Errorf("plan paid = %s, want 0", storedPlan.PaidAmount)
		}
	})

	t.Run("success after recorded failure stays terminal", func(t *testing.T) {
		// --- Arrange ---
		f := newGatewayFixture(t)
		_, inst, rec := createIntent(t, f, "300.00", "300.00")
		if err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{
			IntentID: rec.ExternalIntentID, Reason: "card_declined",
		}); err != nil {
			t.Fatalf("failed outcome: %v", err)
		}

		// --- Act ---
		err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{
			IntentID: rec.ExternalIntentID, Succeeded: true, Method: "card",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("HandleOutcome() error = %v", err)
		}
		storedRec, _ := f.records.FindByIntentID(ctx, repository.NoTX, rec.ExternalIntentID)
		if storedRec.Status != model.GatewayPaymentStatusFailed {
			t.Errorf("record status = %s, want failed to remain terminal", storedRec.Status)
		}
		storedInst, _ := f.insts.FindByID(ctx, repository.NoTX, inst.ID)
		if storedInst.Status != model.InstallmentStatusPending {
			t.Errorf("installment status = %s, want pending", storedInst.Status)
		}
	})

	t.Run("unknown intent", func(t *testing.T) {
		f := newGatewayFixture(t)
		err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{IntentID: uuid.NewString(), Succeeded: true})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("nil or empty outcome", func(t *testing.T) {
		f := newGatewayFixture(t)
		if err := f.uc.HandleOutcome(ctx, nil); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil, got %v", err)
		}
		if err := f.uc.HandleOutcome(ctx, &model.PaymentOutcome{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty intent, got %v", err)
		}
	})
}
