package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "govee"

	metricQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "router_queue_length",
		Namespace: metricsNamespace,
		Help:      "The number of jobs in the route queue",
	})

	metricUnhandledRoute = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "router_unhandled_route",
		Namespace: metricsNamespace,
		Help:      "The total number of messages on a topic without a route.",
	}, []string{"route"})

	metricMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "router_messages_received",
		Namespace: metricsNamespace,
		Help:      "The number of messages received by the router",
	})

	metricMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "router_messages_dropped",
		Namespace: metricsNamespace,
		Help:      "The number of messages dropped because the queue was full",
	})

	metricMessagesSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "router_message_send_errors",
		Namespace: metricsNamespace,
		Help:      "The number of messages which failed to process",
	})

	metricActiveReceiverRoutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "router_active_receiver_routines",
		Namespace: metricsNamespace,
		Help:      "The number of messages being routed",
	})
)
