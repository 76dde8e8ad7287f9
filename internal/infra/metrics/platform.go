package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo, lookupCacheTotal, dbPoolConnections, adminActionsTotal)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exam_access_build_info",
			Help: "Always 1; labelled with the running build.",
		},
		[]string{"version", "commit", "goversion"},
	)

	lookupCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_requests_total",
			Help: "Catalog and processor-token cache lookups by outcome.",
		},
		[]string{"cache", "result"}, // result: hit|miss|error
	)

	dbPoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total|idle|in_use
	)

	adminActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_actions_total",
			Help: "Admin operations (code generation, reviews, premium grants) by outcome.",
		},
		[]string{"action", "status"}, // status: ok|error
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func IncCacheRequest(cacheName, result string) {
	lookupCacheTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolConnections.WithLabelValues("total").Set(float64(total))
	dbPoolConnections.WithLabelValues("idle").Set(float64(idle))
	dbPoolConnections.WithLabelValues("in_use").Set(float64(inUse))
}

func IncAdminAction(action, status string) {
	adminActionsTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
