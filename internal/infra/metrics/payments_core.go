package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		processorRequestsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (initiated/success/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// op: auth|charge, result: ok|error
	processorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_requests_total",
			Help: "Outbound calls to the mobile-money processor by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncProcessorRequest(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	processorRequestsTotal.WithLabelValues(norm(op), result).Inc()
}
