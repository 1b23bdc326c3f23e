package govee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	module = "govee"

	apiKeyHeader = "Govee-API-Key"

	devicesPath = "/devices"
	statePath   = "/devices/state"
	controlPath = "/devices/control"
)

// StatusError is returned when the API answers with a non-2xx HTTP status and
// a body that is not a response envelope.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d: %s", e.StatusCode, e.Body)
}

// API performs the raw calls against the vendor API.  Only transport faults
// are returned as errors, a rejected command is a Response with a non-200
// code.
type API struct {
	cfg Config

	httpClient *http.Client

	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*API)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		a.httpClient = c
	}
}

func NewAPI(cfg Config, logger *slog.Logger, opts ...Option) *API {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	a := &API{
		cfg:    cfg,
		logger: logger.With("module", module),
		tracer: otel.Tracer(module),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, o := range opts {
		o(a)
	}

	return a
}

func (a *API) ListDevices(ctx context.Context) (*Response[[]DeviceInfo], error) {
	var resp Response[deviceList]
	if err := a.do(ctx, "ListDevices", http.MethodGet, devicesPath, nil, nil, &resp); err != nil {
		return nil, err
	}

	return &Response[[]DeviceInfo]{
		Code:    resp.Code,
		Message: resp.Message,
		Data:    resp.Data.Devices,
	}, nil
}

func (a *API) GetDeviceState(ctx context.Context, device, model string) (*Response[DeviceState], error) {
	q := url.Values{}
	q.Set("device", device)
	q.Set("model", model)

	var resp Response[DeviceState]
	if err := a.do(ctx, "GetDeviceState", http.MethodGet, statePath, q, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (a *API) SendCommand(ctx context.Context, device, model string, cmd Command) (*Response[Empty], error) {
	req := controlRequest{
		Device: device,
		Model:  model,
		Cmd:    cmd,
	}

	var resp Response[Empty]
	if err := a.do(ctx, "SendCommand", http.MethodPut, controlPath, nil, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (a *API) SetPower(ctx context.Context, device, model string, on bool) (*Response[Empty], error) {
	return a.SendCommand(ctx, device, model, PowerCommand(on))
}

func (a *API) SetBrightness(ctx context.Context, device, model string, level int) (*Response[Empty], error) {
	return a.SendCommand(ctx, device, model, BrightnessCommand(level))
}

func (a *API) SetColor(ctx context.Context, device, model string, c Color) (*Response[Empty], error) {
	return a.SendCommand(ctx, device, model, ColorCommand(c))
}

func (a *API) SetTemperature(ctx context.Context, device, model string, kelvin int) (*Response[Empty], error) {
	return a.SendCommand(ctx, device, model, TemperatureCommand(kelvin))
}

type envelope interface {
	status() int
	setStatus(int)
}

func (r *Response[T]) status() int     { return r.Code }
func (r *Response[T]) setStatus(c int) { r.Code = c }

func (a *API) do(ctx context.Context, op, method, path string, query url.Values, body any, target envelope) (err error) {
	ctx, span := a.tracer.Start(ctx, "API."+op, trace.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	), trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			metricRequestErrors.WithLabelValues(op).Inc()
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	defer func() {
		metricRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	u := strings.TrimRight(a.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s request", op)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrapf(err, "could not create request: %s %s", method, u)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", op)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if err := json.Unmarshal(raw, target); err != nil {
		if !success {
			return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return errors.Wrapf(err, "failed to decode %s response", op)
	}

	// An error body without an envelope code still carries the rejection.
	if target.status() == 0 && !success {
		target.setStatus(resp.StatusCode)
	}

	code := target.status()
	span.SetAttributes(attribute.Int("code", code))
	metricRequestsTotal.WithLabelValues(op, strconv.Itoa(code)).Inc()

	a.logger.Debug("api response", "op", op, "http_status", resp.StatusCode, "code", code)

	return nil
}
