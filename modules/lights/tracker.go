package lights

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metric interface {
	// DeletePartialMatch from prometheus.MetricVec
	DeletePartialMatch(prometheus.Labels) int
}

// DeviceTracker removes the state series of devices which have not been seen
// for a while, such as devices removed from the account.
type DeviceTracker struct {
	mtx        sync.Mutex
	devices    map[string]time.Time
	metrics    []Metric
	purgeAfter time.Duration
}

func NewDeviceTracker(metrics []Metric, purgeAfter time.Duration) *DeviceTracker {
	return &DeviceTracker{
		devices:    make(map[string]time.Time),
		metrics:    metrics,
		purgeAfter: purgeAfter,
	}
}

func (d *DeviceTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.PurgeAll()
		}
	}
}

// PurgeAll removes devices that have not been seen for a while.
func (d *DeviceTracker) PurgeAll() {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	for device, t := range d.devices {
		if time.Since(t) >= d.purgeAfter {
			metricPurges.Inc()
			delete(d.devices, device)
			for _, metric := range d.metrics {
				metric.DeletePartialMatch(prometheus.Labels{"device": device})
			}
		}
	}
}

// Track marks a device as seen now.
func (d *DeviceTracker) Track(device string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.devices[device] = time.Now()
}

func (d *DeviceTracker) tracked(device string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	_, ok := d.devices[device]
	return ok
}
