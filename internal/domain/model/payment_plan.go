package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"    // installments outstanding
	PlanStatusCompleted PlanStatus = "completed" // balance reached zero
	PlanStatusSuspended PlanStatus = "suspended" // admin hold; no financial effect
	PlanStatusDefaulted PlanStatus = "defaulted"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// PaymentPlan is the aggregate financial obligation for a student's enrollment,
// divided into installments. BalanceAmount is always TotalAmount minus PaidAmount.
type PaymentPlan struct {
	ID               string // UUID
	StudentID        string // UUID
	CourseID         *string
	TotalAmount      decimal.Decimal
	PaidAmount       decimal.Decimal
	BalanceAmount    decimal.Decimal
	InstallmentCount int
	Status           PlanStatus
	Description      string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanTransition is the single authority on plan status changes. Completed is
// reached only through recorded payments; the forced statuses may be applied
// to an active or suspended plan and may return to active.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	if s == to {
		return false
	}
	switch s {
	case PlanStatusActive:
		return to == PlanStatusCompleted || to == PlanStatusSuspended ||
			to == PlanStatusDefaulted || to == PlanStatusCancelled
	case PlanStatusSuspended:
		return to == PlanStatusActive || to == PlanStatusDefaulted || to == PlanStatusCancelled
	case PlanStatusDefaulted:
		return to == PlanStatusActive || to == PlanStatusCancelled
	default:
		// completed and cancelled are terminal
		return false
	}
}

// Consistent reports whether the plan's financial invariant holds.
func (p *PaymentPlan) Consistent() bool {
	return p.BalanceAmount.Equal(p.TotalAmount.Sub(p.PaidAmount)) && !p.BalanceAmount.IsNegative()
}
