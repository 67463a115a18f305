package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayCallsTotal, gatewayCallDuration, watchOperationsTotal)
}

var (
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Calls to the workflow automation API by operation and result.",
		},
		[]string{"op", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Latency of workflow automation API calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"op"},
	)

	watchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_operations_total",
			Help: "Watchlist mutations by operation (add/remove/delete_all) and result.",
		},
		[]string{"op", "result"},
	)
)

// ObserveGatewayCall records one remote call. result is "ok" or an error kind.
func ObserveGatewayCall(op, result string, took time.Duration) {
	gatewayCallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	gatewayCallDuration.WithLabelValues(norm(op)).Observe(took.Seconds())
}

func IncWatchOperation(op, result string) {
	watchOperationsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}
