package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
)

// ScheduledInstallment is one row of a generated schedule.
type ScheduledInstallment struct {
	Number  int
	Amount  decimal.Decimal
	DueDate time.Time
}

// BuildSchedule splits total into count installments due monthly from
// firstDueDate. Rows 1..count-1 carry round(total/count, 2); the final row
// absorbs the rounding remainder so the schedule sums exactly to total.
// Due dates use calendar-month arithmetic, not fixed 30-day steps.
func BuildSchedule(total decimal.Decimal, count int, firstDueDate time.Time) ([]ScheduledInstallment, error) {
	if count < 1 || total.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidSchedule
	}

	per := total.Div(decimal.NewFromInt(int64(count))).Round(2)
	rows := make([]ScheduledInstallment, 0, count)
	running := decimal.Zero
	for i := 1; i <= count; i++ {
		amount := per
		if i == count {
			amount = total.Sub(running)
		}
		rows = append(rows, ScheduledInstallment{
			Number:  i,
			Amount:  amount,
			DueDate: firstDueDate.AddDate(0, i-1, 0),
		})
		running = running.Add(amount)
	}
	return rows, nil
}
