package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal, adminRequestDuration) }

var (
	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_http_requests_total",
			Help: "Admin HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	adminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_http_request_duration_seconds",
			Help:    "Admin HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func ObserveAdminRequest(method string, status int, took time.Duration) {
	adminRequestsTotal.WithLabelValues(norm(method), strconv.Itoa(status)).Inc()
	adminRequestDuration.WithLabelValues(norm(method)).Observe(took.Seconds())
}
