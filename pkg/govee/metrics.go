package govee

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "govee"

	metricRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "api_requests_total",
		Namespace: metricsNamespace,
		Help:      "The total number of API requests by operation and envelope code",
	}, []string{"op", "code"})

	metricRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "api_request_errors_total",
		Namespace: metricsNamespace,
		Help:      "The total number of API requests which failed before a response envelope was decoded",
	}, []string{"op"})

	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "api_request_duration_seconds",
		Namespace: metricsNamespace,
		Help:      "The duration of API requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	metricGroupCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "group_commands_total",
		Namespace: metricsNamespace,
		Help:      "The total number of group commands by command and aggregate result",
	}, []string{"cmd", "ok"})
)
