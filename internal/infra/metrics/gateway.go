package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gatewayIntentsTotal,
		webhookEventsTotal,
		webhookRejectedTotal,
	)
}

var (
	gatewayIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_intents_total",
			Help: "Payment intents created at the gateway (ok/error).",
		},
		[]string{"result"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Reconciled webhook events by outcome (succeeded/failed/duplicate).",
		},
		[]string{"outcome"},
	)

	webhookRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_webhook_rejected_total",
			Help: "Webhook deliveries rejected before processing (bad signature or payload).",
		},
	)
)

func IncGatewayIntent(result string) {
	gatewayIntentsTotal.WithLabelValues(norm(result)).Inc()
}

func IncWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncWebhookRejected() {
	webhookRejectedTotal.Inc()
}
