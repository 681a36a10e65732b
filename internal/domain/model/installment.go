package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"    // terminal
	InstallmentStatusOverdue InstallmentStatus = "overdue" // past due, still payable
)

// Installment is one scheduled obligation within a payment plan. The plan
// exclusively owns its installments; installment numbers are unique per plan
// and the amounts of all installments sum exactly to the plan total.
type Installment struct {
	ID                 string // UUID
	PaymentPlanID      string // owning plan
	InstallmentNumber  int    // 1..N within the plan
	Amount             decimal.Decimal
	DueDate            time.Time
	PaidDate           *time.Time
	Status             InstallmentStatus
	ReceiptID          *string // back-reference to the issued receipt, not ownership
	ExternalPaymentRef *string // gateway intent id that settled this installment
	Remarks            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanTransition enforces monotonic installment status movement:
// pending -> paid|overdue, overdue -> paid, paid is terminal.
func (s InstallmentStatus) CanTransition(to InstallmentStatus) bool {
	switch s {
	case InstallmentStatusPending:
		return to == InstallmentStatusPaid || to == InstallmentStatusOverdue
	case InstallmentStatusOverdue:
		return to == InstallmentStatusPaid
	default:
		return false
	}
}

// Payable reports whether a payment may still be applied.
func (i *Installment) Payable() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusOverdue
}
