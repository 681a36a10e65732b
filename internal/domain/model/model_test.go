//go:build !integration

package model_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain/model"
)

func TestPlanStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.PlanStatus
		want     bool
	}{
		{model.PlanStatusActive, model.PlanStatusCompleted, true},
		{model.PlanStatusActive, model.PlanStatusSuspended, true},
		{model.PlanStatusActive, model.PlanStatusDefaulted, true},
		{model.PlanStatusActive, model.PlanStatusCancelled, true},
		{model.PlanStatusActive, model.PlanStatusActive, false},
		{model.PlanStatusSuspended, model.PlanStatusActive, true},
		{model.PlanStatusSuspended, model.PlanStatusCompleted, false},
		{model.PlanStatusDefaulted, model.PlanStatusActive, true},
		{model.PlanStatusDefaulted, model.PlanStatusCancelled, true},
		{model.PlanStatusCompleted, model.PlanStatusActive, false},
		{model.PlanStatusCompleted, model.PlanStatusCancelled, false},
		{model.PlanStatusCancelled, model.PlanStatusActive, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInstallmentStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.InstallmentStatus
		want     bool
	}{
		{model.InstallmentStatusPending, model.InstallmentStatusPaid, true},
		{model.InstallmentStatusPending, model.InstallmentStatusOverdue, true},
		{model.InstallmentStatusOverdue, model.InstallmentStatusPaid, true},
		{model.InstallmentStatusOverdue, model.InstallmentStatusPending, false},
		{model.InstallmentStatusPaid, model.InstallmentStatusPending, false},
		{model.InstallmentStatusPaid, model.InstallmentStatusOverdue, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestGatewayPaymentStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.GatewayPaymentStatus
		want     bool
	}{
		{model.GatewayPaymentStatusPending, model.GatewayPaymentStatusPaid, true},
		{model.GatewayPaymentStatusPending, model.GatewayPaymentStatusFailed, true},
		{model.GatewayPaymentStatusPaid, model.GatewayPaymentStatusFailed, false},
		{model.GatewayPaymentStatusFailed, model.GatewayPaymentStatusPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInstallmentPayable(t *testing.T) {
	for _, tc := range []struct {
		status model.InstallmentStatus
		want   bool
	}{
		{model.InstallmentStatusPending, true},
		{model.InstallmentStatusOverdue, true},
		{model.InstallmentStatusPaid, false},
	} {
		inst := &model.Installment{Status: tc.status}
		if inst.Payable() != tc.want {
			t.Errorf("Payable() with %s = %v, want %v", tc.status, inst.Payable(), tc.want)
		}
	}
}

func TestPlanConsistent(t *testing.T) {
	plan := &model.PaymentPlan{
		TotalAmount:   decimal.RequireFromString("900.00"),
		PaidAmount:    decimal.RequireFromString("300.00"),
		BalanceAmount: decimal.RequireFromString("600.00"),
	}
	if !plan.Consistent() {
		t.Error("expected balanced plan to be consistent")
	}

	plan.BalanceAmount = decimal.RequireFromString("500.00")
	if plan.Consistent() {
		t.Error("expected mismatched balance to be inconsistent")
	}

	plan.PaidAmount = decimal.RequireFromString("1000.00")
	plan.BalanceAmount = decimal.RequireFromString("-100.00")
	if plan.Consistent() {
		t.Error("expected negative balance to be inconsistent")
	}
}
