package lights

import (
	"context"
	"log/slog"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/govee/pkg/govee"
)

const module = "lights"

var _ services.Service = (*Lights)(nil)

// Lights owns the vendor client for the process and applies control requests
// from the HTTP and MQTT surfaces.
type Lights struct {
	services.Service
	cfg *Config

	logger *slog.Logger
	tracer trace.Tracer

	client  *govee.Client
	tracker *DeviceTracker
}

func New(cfg Config, logger *slog.Logger, opts ...govee.Option) (*Lights, error) {
	if cfg.Govee.APIKey == "" {
		return nil, errors.New("govee api key is required")
	}

	l := &Lights{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		tracer:  otel.Tracer(module),
		client:  govee.New(cfg.Govee, logger, opts...),
		tracker: NewDeviceTracker(stateMetrics, cfg.PurgeAfter),
	}

	l.Service = services.NewBasicService(l.starting, l.running, l.stopping)
	return l, nil
}

func (l *Lights) Client() *govee.Client {
	return l.client
}

func (l *Lights) starting(ctx context.Context) error {
	devices, err := l.client.Devices(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load devices")
	}

	for _, d := range devices {
		l.logger.Info("device", "name", d.Name(), "model", d.Model(), "controllable", d.Controllable(), "retrievable", d.Retrievable())
	}

	return nil
}

func (l *Lights) running(ctx context.Context) error {
	if l.cfg.PollInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	go l.tracker.Run(ctx, l.cfg.PollInterval)

	t := time.NewTicker(l.cfg.PollInterval)
	defer t.Stop()

	l.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.poll(ctx)
		}
	}
}

func (l *Lights) stopping(_ error) error {
	return nil
}

// poll exports the state of every retrievable device.
func (l *Lights) poll(ctx context.Context) {
	ctx, span := l.tracer.Start(ctx, "Lights.poll")
	defer span.End()

	devices, err := l.client.Devices(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("failed to list devices", "err", err)
		return
	}

	for _, d := range devices {
		if !d.Retrievable() {
			continue
		}

		state, err := d.State(ctx)
		if err != nil || state == nil {
			metricPollErrors.WithLabelValues(d.Name()).Inc()
			if err != nil {
				l.logger.Error("failed to poll device state", "device", d.Name(), "err", err)
			}
			continue
		}

		l.export(d, state)
	}
}

func (l *Lights) export(d *govee.Device, state *govee.State) {
	labels := []string{d.Name(), d.Model()}

	metricDeviceOnline.WithLabelValues(labels...).Set(boolToFloat(state.Online))
	metricDevicePower.WithLabelValues(labels...).Set(boolToFloat(state.On))
	metricDeviceBrightness.WithLabelValues(labels...).Set(float64(state.Brightness))
	if state.ColorTem != nil {
		metricDeviceColorTemperature.WithLabelValues(labels...).Set(float64(*state.ColorTem))
	}

	l.tracker.Track(d.Name())
}

func (l *Lights) Devices(ctx context.Context) ([]*govee.Device, error) {
	return l.client.Devices(ctx)
}

func (l *Lights) Refresh(ctx context.Context) ([]*govee.Device, error) {
	ctx, span := l.tracer.Start(ctx, "Lights.Refresh")
	defer span.End()

	devices, err := l.client.Refresh(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l.logger.Info("refreshed devices", "count", len(devices))
	return devices, nil
}

// DeviceState returns the state of the named device, nil when the API did not
// provide one.
func (l *Lights) DeviceState(ctx context.Context, name string) (*govee.State, error) {
	ctx, span := l.tracer.Start(ctx, "Lights.DeviceState", trace.WithAttributes(attribute.String("device_name", name)))
	defer span.End()

	if _, err := l.client.Devices(ctx); err != nil {
		return nil, err
	}

	d, ok := l.client.Device(name)
	if !ok {
		return nil, errors.Wrap(ErrUnknownDevice, name)
	}

	return d.State(ctx)
}

// Apply runs req against the devices it names, or every device when it names
// none.
func (l *Lights) Apply(ctx context.Context, source string, req Request) (*Response, error) {
	ctx, span := l.tracer.Start(ctx, "Lights.Apply", trace.WithAttributes(
		attribute.String("source", source),
		attribute.StringSlice("devices", req.Devices),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		group *govee.Group
		err   error
	)

	if len(req.Devices) == 0 {
		group, err = l.client.AllControlGroup(ctx)
	} else {
		group, err = l.client.ControlGroup(ctx, req.Devices...)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := req.apply(ctx, group)

	metricRequestsTotal.WithLabelValues(source, boolString(resp.OK)).Inc()
	span.SetAttributes(attribute.Bool("ok", resp.OK))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("request failed", "source", source, "devices", resp.Devices, "err", err)
		return resp, err
	}

	if !resp.OK {
		l.logger.Warn("request rejected", "source", source, "steps", resp.Steps)
	}

	return resp, nil
}

// ApplyDevice is Apply for a single device, which must exist.
func (l *Lights) ApplyDevice(ctx context.Context, source, name string, req Request) (*Response, error) {
	if _, err := l.client.Devices(ctx); err != nil {
		return nil, err
	}

	if _, ok := l.client.Device(name); !ok {
		return nil, errors.Wrap(ErrUnknownDevice, name)
	}

	req.Devices = []string{name}
	return l.Apply(ctx, source, req)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
