package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/govee/modules/lights"
	"github.com/zachfi/govee/pkg/govee"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

type applied struct {
	name string
	req  lights.Request
}

type mockController struct {
	mtx     sync.Mutex
	applied []applied
	state   *govee.State
}

func (m *mockController) Apply(_ context.Context, _ string, req lights.Request) (*lights.Response, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.applied = append(m.applied, applied{req: req})
	return &lights.Response{OK: true}, nil
}

func (m *mockController) ApplyDevice(_ context.Context, _ string, name string, req lights.Request) (*lights.Response, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if name == "garage" {
		return nil, lights.ErrUnknownDevice
	}
	m.applied = append(m.applied, applied{name: name, req: req})
	return &lights.Response{OK: true}, nil
}

func (m *mockController) DeviceState(_ context.Context, name string) (*govee.State, error) {
	if name == "garage" {
		return nil, lights.ErrUnknownDevice
	}
	return m.state, nil
}

type published struct {
	topic   string
	payload string
}

type mockBroker struct {
	mtx       sync.Mutex
	subs      map[string]mqtt.MessageHandler
	published []published
}

func (b *mockBroker) Subscribe(topic string, handler mqtt.MessageHandler) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.subs[topic] = handler
}

func (b *mockBroker) Unsubscribe(topic string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.subs, topic)
}

func (b *mockBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.published = append(b.published, published{topic: topic, payload: string(payload.([]byte))})
	return doneToken{}
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (doneToken) Error() error { return nil }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

func testRouter(t *testing.T) (*mockController, *mockBroker, *Router) {
	c := &mockController{}
	b := &mockBroker{subs: make(map[string]mqtt.MessageHandler)}

	r, err := New(Config{Prefix: "govee", ReportConcurrency: 2}, testLogger, c, b)
	require.NoError(t, err)

	return c, b, r
}

func TestSend(t *testing.T) {
	brightness := 30

	cases := []struct {
		name     string
		path     string
		payload  string
		err      bool
		expected []applied
	}{
		{
			name:     "group",
			path:     "govee/group/set",
			payload:  `{"devices":["desk"],"state":"on"}`,
			expected: []applied{{req: lights.Request{Devices: []string{"desk"}, State: "on"}}},
		},
		{
			name:     "device",
			path:     "govee/desk/set",
			payload:  `{"brightness":30}`,
			expected: []applied{{name: "desk", req: lights.Request{Brightness: &brightness}}},
		},
		{
			name:     "device with spaces",
			path:     "govee/Living Room/set",
			payload:  `{"color":"#ff0000"}`,
			expected: []applied{{name: "Living Room", req: lights.Request{Color: "#ff0000"}}},
		},
		{
			name:    "unknown device",
			path:    "govee/garage/set",
			payload: `{"state":"on"}`,
			err:     true,
		},
		{
			name:    "bad payload",
			path:    "govee/desk/set",
			payload: `on`,
			err:     true,
		},
		{
			name: "own state",
			path: "govee/desk/state",
		},
		{
			name: "other prefix",
			path: "zigbee2mqtt/desk/set",
		},
		{
			name: "too deep",
			path: "govee/a/b/set",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, r := testRouter(t)

			err := r.send(context.Background(), tc.path, []byte(tc.payload))
			if tc.err {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.expected, c.applied)
		})
	}
}

func TestPublishState(t *testing.T) {
	c, b, r := testRouter(t)
	c.state = &govee.State{Name: "desk", On: true, Brightness: 10}

	err := r.send(context.Background(), "govee/desk/get", nil)
	require.NoError(t, err)
	require.Equal(t, []published{{
		topic:   "govee/desk/state",
		payload: `{"device":"","model":"","name":"desk","online":false,"on":true,"brightness":10}`,
	}}, b.published)

	err = r.send(context.Background(), "govee/garage/get", nil)
	require.True(t, errors.Is(err, lights.ErrUnknownDevice))

	c.state = nil
	err = r.send(context.Background(), "govee/desk/get", nil)
	require.Error(t, err)
}

func TestRunning(t *testing.T) {
	c, b, r := testRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.starting(ctx))
	handler, ok := b.subs["govee/#"]
	require.True(t, ok)

	done := make(chan error)
	go func() { done <- r.running(ctx) }()

	handler(nil, message{topic: "govee/desk/set", payload: []byte(`{"state":"off"}`)})
	handler(nil, message{topic: "govee/shelf/set", payload: []byte(`{"state":"off"}`)})

	require.Eventually(t, func() bool {
		c.mtx.Lock()
		defer c.mtx.Unlock()
		return len(c.applied) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	b.mtx.Lock()
	defer b.mtx.Unlock()
	require.Empty(t, b.subs)
}
