package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsRecordedTotal,
		paymentsAmountTotal,
		overduePromotionsTotal,
		receiptsIssuedTotal,
		recorderRetriesTotal,
	)
}

var (
	paymentsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_recorded_total",
			Help: "Payment recording attempts by result (applied/noop/overpayment/conflict/error).",
		},
		[]string{"result"},
	)

	paymentsAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_amount_total",
			Help: "Total monetary value of applied payments, labeled by method.",
		},
		[]string{"method"},
	)

	overduePromotionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_overdue_promotions_total",
			Help: "Installments promoted from pending to overdue by the sweeper.",
		},
	)

	receiptsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_receipts_issued_total",
			Help: "Receipt issuance outcomes (ok/error).",
		},
		[]string{"result"},
	)

	recorderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_recorder_retries_total",
			Help: "Bounded retries taken by the payment recorder on storage conflicts.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncPaymentRecorded(result string) {
	paymentsRecordedTotal.WithLabelValues(norm(result)).Inc()
}

func AddPaymentAmount(method string, amount float64) {
	paymentsAmountTotal.WithLabelValues(norm(method)).Add(amount)
}

func AddOverduePromotions(n int64) {
	overduePromotionsTotal.Add(float64(n))
}

func IncReceiptIssued(result string) {
	receiptsIssuedTotal.WithLabelValues(norm(result)).Inc()
}

func IncRecorderRetry() {
	recorderRetriesTotal.Inc()
}
