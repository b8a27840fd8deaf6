package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the webhook pipeline
var (
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydemo_webhook_deliveries_total",
			Help: "Total number of webhook deliveries received, by verification outcome",
		},
		[]string{"verification"},
	)

	ReconciliationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydemo_reconciliation_outcomes_total",
			Help: "Total number of reconciliation results, by source and processing outcome",
		},
		[]string{"source", "outcome"},
	)

	WebhookReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paydemo_webhook_replays_total",
			Help: "Total number of operator-initiated webhook replays",
		},
	)

	OrderLockTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paydemo_order_lock_timeouts_total",
			Help: "Total number of deliveries deferred because the order lock was busy",
		},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paydemo_webhook_processing_duration_seconds",
			Help:    "Duration of inbound webhook handling",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WebhookDeliveriesTotal)
		prometheus.MustRegister(ReconciliationOutcomesTotal)
		prometheus.MustRegister(WebhookReplaysTotal)
		prometheus.MustRegister(OrderLockTimeoutsTotal)
		prometheus.MustRegister(WebhookProcessingDuration)
	})
}
