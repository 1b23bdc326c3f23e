package lights

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "govee"
	metricsSubsystem = "lights"

	metricDeviceOnline = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "device_online",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "Whether the device reports itself online",
	}, []string{"device", "model"})

	metricDevicePower = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "device_power",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "Whether the device is powered on",
	}, []string{"device", "model"})

	metricDeviceBrightness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "device_brightness",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The reported brightness of the device",
	}, []string{"device", "model"})

	metricDeviceColorTemperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "device_color_temperature",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The reported color temperature of the device in kelvin",
	}, []string{"device", "model"})

	metricPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "poll_errors_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The total number of failed state polls",
	}, []string{"device"})

	metricRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "requests_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "The total number of control requests by source and result",
	}, []string{"source", "ok"})

	metricPurges = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "purges_total",
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Help:      "Total number of devices purged from the state metrics",
	})

	stateMetrics = []Metric{
		metricDeviceOnline,
		metricDevicePower,
		metricDeviceBrightness,
		metricDeviceColorTemperature,
	}
)
