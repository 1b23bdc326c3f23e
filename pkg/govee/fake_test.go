package govee

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const testKey = "testKey"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   controlRequest
}

// fakeAPI is an in-process stand in for the vendor API.
type fakeAPI struct {
	mtx      sync.Mutex
	requests []recordedRequest

	devices   []DeviceInfo
	listCode  int
	state     map[string]DeviceState
	stateCode int
	// codes per device id for control requests, default 200
	controlCodes map[string]int
}

func newFakeAPI(t *testing.T, devices ...DeviceInfo) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{
		devices:      devices,
		listCode:     StatusOK,
		stateCode:    StatusOK,
		state:        make(map[string]DeviceState),
		controlCodes: make(map[string]int),
	}

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
	}

	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}

	f.mtx.Lock()
	f.requests = append(f.requests, rec)
	f.mtx.Unlock()

	w.Header().Set("Content-Type", "application/json")

	f.mtx.Lock()
	defer f.mtx.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == devicesPath:
		writeEnvelope(w, f.listCode, deviceList{Devices: f.devices})
	case r.Method == http.MethodGet && r.URL.Path == statePath:
		writeEnvelope(w, f.stateCode, f.state[r.URL.Query().Get("device")])
	case r.Method == http.MethodPut && r.URL.Path == controlPath:
		code, ok := f.controlCodes[rec.Body.Device]
		if !ok {
			code = StatusOK
		}
		writeEnvelope(w, code, struct{}{})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) setState(device string, state DeviceState) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.state[device] = state
}

func (f *fakeAPI) setStateCode(code int) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.stateCode = code
}

func (f *fakeAPI) setListCode(code int) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.listCode = code
}

func (f *fakeAPI) setDevices(devices ...DeviceInfo) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.devices = devices
}

func (f *fakeAPI) setControlCode(device string, code int) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.controlCodes[device] = code
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeAPI) count(method, path string) int {
	var n int
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, code int, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": http.StatusText(code),
		"data":    data,
	})
}

func testClient(srv *httptest.Server) *Client {
	return New(Config{APIKey: testKey, BaseURL: srv.URL}, testLogger, WithHTTPClient(srv.Client()))
}

func testDevices() []DeviceInfo {
	return []DeviceInfo{
		{Device: "aa:bb", Model: "H6159", Name: "desk", Controllable: true, Retrievable: true, SupportCmds: []string{"turn", "brightness", "color", "colorTem"}},
		{Device: "cc:dd", Model: "H6159", Name: "shelf", Controllable: true, Retrievable: true, SupportCmds: []string{"turn", "brightness"}},
		{Device: "ee:ff", Model: "H6003", Name: "lamp", Controllable: true, Retrievable: false, SupportCmds: []string{"turn"}},
	}
}
