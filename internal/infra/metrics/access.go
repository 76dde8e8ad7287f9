package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		codeAllocationsTotal,
		codeRedemptionsTotal,
		controlNumberRequestsTotal,
		premiumGrantsTotal,
		stalePendingPayments,
	)
}

var (
	codeAllocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_code_allocations_total",
			Help: "Access code allocations on successful payments.",
		},
		[]string{"result"}, // 'allocated', 'exhausted'
	)

	codeRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_code_redemptions_total",
			Help: "Direct code redemption attempts by result.",
		},
		[]string{"result"}, // 'ok', 'invalid'
	)

	controlNumberRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_number_requests_total",
			Help: "Control-number lifecycle events.",
		},
		[]string{"status"}, // 'requested', 'approved', 'rejected'
	)

	premiumGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_grants_total",
			Help: "Premium subscription grants by source.",
		},
		[]string{"source"}, // 'payment', 'admin'
	)

	stalePendingPayments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_stale_pending",
			Help: "Pending payments older than the stale threshold at the last scan.",
		},
	)
)

func IncCodeAllocation(result string) {
	codeAllocationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCodeRedemption(result string) {
	codeRedemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncControlNumber(status string) {
	controlNumberRequestsTotal.WithLabelValues(norm(status)).Inc()
}

func IncPremiumGrant(source string) {
	premiumGrantsTotal.WithLabelValues(norm(source)).Inc()
}

func SetStalePending(n int) {
	stalePendingPayments.Set(float64(n))
}
