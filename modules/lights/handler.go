package lights

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/govee/pkg/govee"
)

const sourceHTTP = "http"

type deviceView struct {
	Name         string   `json:"name"`
	Device       string   `json:"device"`
	Model        string   `json:"model"`
	Controllable bool     `json:"controllable"`
	Retrievable  bool     `json:"retrievable"`
	SupportCmds  []string `json:"support_cmds"`
}

type errorView struct {
	Error string `json:"error"`
}

// RegisterRoutes adds the HTTP API to r.
func (l *Lights) RegisterRoutes(r *mux.Router) {
	r.Path("/govee/devices").HandlerFunc(l.DevicesHandler).Methods(http.MethodGet)
	r.Path("/govee/devices/{name}/state").HandlerFunc(l.StateHandler).Methods(http.MethodGet)
	r.Path("/govee/devices/{name}").HandlerFunc(l.DeviceHandler).Methods(http.MethodPut)
	r.Path("/govee/groups").HandlerFunc(l.GroupHandler).Methods(http.MethodPut)
	r.Path("/govee/refresh").HandlerFunc(l.RefreshHandler).Methods(http.MethodPost)
}

func (l *Lights) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := l.tracer.Start(r.Context(), "Lights.DevicesHandler", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	devices, err := l.Devices(ctx)
	if err != nil {
		l.writeError(w, http.StatusBadGateway, err)
		return
	}

	l.writeJSON(w, http.StatusOK, viewDevices(devices))
}

func (l *Lights) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := l.tracer.Start(r.Context(), "Lights.RefreshHandler", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	devices, err := l.Refresh(ctx)
	if err != nil {
		l.writeError(w, http.StatusBadGateway, err)
		return
	}

	l.writeJSON(w, http.StatusOK, viewDevices(devices))
}

func (l *Lights) StateHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ctx, span := l.tracer.Start(r.Context(), "Lights.StateHandler",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("device_name", name)),
	)
	defer span.End()

	state, err := l.DeviceState(ctx, name)
	switch {
	case errors.Is(err, ErrUnknownDevice):
		l.writeError(w, http.StatusNotFound, err)
	case err != nil:
		l.writeError(w, http.StatusBadGateway, err)
	case state == nil:
		l.writeJSON(w, http.StatusServiceUnavailable, errorView{Error: "device state not available"})
	default:
		l.writeJSON(w, http.StatusOK, state)
	}
}

func (l *Lights) DeviceHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ctx, span := l.tracer.Start(r.Context(), "Lights.DeviceHandler",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("device_name", name)),
	)
	defer span.End()

	req, ok := l.decodeRequest(w, r)
	if !ok {
		return
	}

	resp, err := l.ApplyDevice(ctx, sourceHTTP, name, req)
	l.writeResponse(w, resp, err)
}

func (l *Lights) GroupHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := l.tracer.Start(r.Context(), "Lights.GroupHandler", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	req, ok := l.decodeRequest(w, r)
	if !ok {
		return
	}

	resp, err := l.Apply(ctx, sourceHTTP, req)
	l.writeResponse(w, resp, err)
}

func (l *Lights) decodeRequest(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := dec.Decode(&req); err != nil {
		l.writeError(w, http.StatusBadRequest, err)
		return req, false
	}

	return req, true
}

func (l *Lights) writeResponse(w http.ResponseWriter, resp *Response, err error) {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		l.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrEmptyRequest), errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflictColors):
		l.writeError(w, http.StatusBadRequest, err)
	case err != nil:
		l.writeError(w, http.StatusBadGateway, err)
	case !resp.OK:
		l.writeJSON(w, http.StatusBadGateway, resp)
	default:
		l.writeJSON(w, http.StatusOK, resp)
	}
}

func (l *Lights) writeError(w http.ResponseWriter, status int, err error) {
	l.writeJSON(w, status, errorView{Error: err.Error()})
}

func (l *Lights) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.logger.Error("error writing response", "err", err)
	}
}

func viewDevices(devices []*govee.Device) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{
			Name:         d.Name(),
			Device:       d.ID(),
			Model:        d.Model(),
			Controllable: d.Controllable(),
			Retrievable:  d.Retrievable(),
			SupportCmds:  d.SupportCmds(),
		})
	}
	return views
}
