package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentCallbackRequests,
		PaymentCallbackDuration,
		AdminNotifyTotal,
	)
}

var (
	// Count of processor callbacks grouped by result and bounded reason.
	// result: ok|fail
	// reason: success|failed|pending|duplicate|bad_json|missing_external_id|not_found|internal
	PaymentCallbackRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_requests_total",
			Help: "Count of processor callbacks by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the callback handler grouped by result.
	PaymentCallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Duration of the processor callback handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Admin alerts grouped by kind and delivery status.
	// kind: exhausted|control_number|stale
	// status: sent|error
	AdminNotifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_notify_total",
			Help: "Administrator alerts by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)
)

func ObserveCallback(result, reason string, seconds float64) {
	PaymentCallbackRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	PaymentCallbackDuration.WithLabelValues(norm(result)).Observe(seconds)
}

func IncAdminNotify(kind string, err error) {
	status := "sent"
	if err != nil {
		status = "error"
	}
	AdminNotifyTotal.WithLabelValues(norm(kind), status).Inc()
}
