package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

func vendorServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var data any = map[string]any{}
		if r.URL.Path == "/devices" {
			data = map[string]any{"devices": []map[string]any{
				{"device": "aa:bb", "model": "H6159", "deviceName": "desk", "controllable": true, "retrievable": true, "supportCmds": []string{"turn", "brightness"}},
			}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "Success", "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLightsTarget(t *testing.T) {
	srv := vendorServer(t)

	cfg := NewDefaultConfig()
	cfg.Target = Lights
	cfg.Server.HTTPListenPort = 0
	cfg.Server.GRPCListenPort = 0
	cfg.Server.Registerer = prometheus.NewRegistry()
	cfg.Lights.Govee.APIKey = "key"
	cfg.Lights.Govee.BaseURL = srv.URL

	a, err := New(*cfg, testLogger)
	require.NoError(t, err)

	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	require.NoError(t, err)
	a.serviceMap = serviceMap

	require.Contains(t, serviceMap, Server)
	require.Contains(t, serviceMap, Lights)
	require.NotContains(t, serviceMap, MQTTClient)
	require.NotContains(t, serviceMap, Router)
	require.NotNil(t, a.lights)
	require.Nil(t, a.mqttclient)

	servs := []services.Service(nil)
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sm.StartAsync(ctx))
	require.NoError(t, sm.AwaitHealthy(ctx))

	t.Run("ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.readyHandler(sm)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("routes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Server.HTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/govee/devices", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"name":"desk"`)
	})

	t.Run("status devices", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, a.writeStatusDevices(ctx, &buf))
		require.Contains(t, buf.String(), "desk")
		require.Contains(t, buf.String(), "H6159")
	})

	sm.StopAsync()
	require.NoError(t, sm.AwaitStopped(ctx))
}
