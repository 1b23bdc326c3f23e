package govee

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDevice(t *testing.T) (*fakeAPI, *Device) {
	f, srv := newFakeAPI(t, testDevices()...)
	c := testClient(srv)
	return f, NewDevice(testDevices()[0], c.API())
}

func TestDeviceCommands(t *testing.T) {
	cases := []struct {
		name     string
		call     func(context.Context, *Device) (bool, error)
		expected Command
	}{
		{
			name: "turn on",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.TurnOn(ctx)
			},
			expected: Command{Name: CmdTurn, Value: "on"},
		},
		{
			name: "turn off",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.TurnOff(ctx)
			},
			expected: Command{Name: CmdTurn, Value: "off"},
		},
		{
			name: "brightness",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetBrightness(ctx, 50)
			},
			expected: Command{Name: CmdBrightness, Value: float64(50)},
		},
		{
			name: "brightness out of range is forwarded",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetBrightness(ctx, 150)
			},
			expected: Command{Name: CmdBrightness, Value: float64(150)},
		},
		{
			name: "rgb color",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetRGBColor(ctx, Color{R: 244, G: 134, B: 134})
			},
			expected: Command{Name: CmdColor, Value: map[string]any{"r": float64(244), "g": float64(134), "b": float64(134)}},
		},
		{
			name: "rgb color out of range is forwarded",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetRGBColor(ctx, Color{R: 300, G: -1, B: 0})
			},
			expected: Command{Name: CmdColor, Value: map[string]any{"r": float64(300), "g": float64(-1), "b": float64(0)}},
		},
		{
			name: "hex color",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetHexColor(ctx, "#f48686")
			},
			expected: Command{Name: CmdColor, Value: map[string]any{"r": float64(244), "g": float64(134), "b": float64(134)}},
		},
		{
			name: "malformed hex color falls back to white",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetHexColor(ctx, "#ffff")
			},
			expected: Command{Name: CmdColor, Value: map[string]any{"r": float64(255), "g": float64(255), "b": float64(255)}},
		},
		{
			name: "color temperature",
			call: func(ctx context.Context, d *Device) (bool, error) {
				return d.SetColorTemperature(ctx, 2700)
			},
			expected: Command{Name: CmdColorTem, Value: float64(2700)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, d := testDevice(t)

			ok, err := tc.call(context.Background(), d)
			require.NoError(t, err)
			require.True(t, ok)

			reqs := f.recorded()
			require.Len(t, reqs, 1)
			require.Equal(t, "aa:bb", reqs[0].Body.Device)
			require.Equal(t, "H6159", reqs[0].Body.Model)
			require.Equal(t, tc.expected, reqs[0].Body.Cmd)
		})
	}
}

func TestDeviceCommandRejected(t *testing.T) {
	cases := []struct {
		name string
		code int
	}{
		{name: "unauthorized", code: http.StatusUnauthorized},
		{name: "rate limited", code: http.StatusTooManyRequests},
		{name: "server error", code: http.StatusInternalServerError},
		{name: "bad request", code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, d := testDevice(t)
			f.setControlCode("aa:bb", tc.code)

			ok, err := d.TurnOn(context.Background())
			require.NoError(t, err)
			require.False(t, ok)

			ok, err = d.TurnOff(context.Background())
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestDeviceState(t *testing.T) {
	f, d := testDevice(t)

	online := true
	power := "on"
	brightness := 82
	f.setState("aa:bb", DeviceState{
		Device: "aa:bb",
		Model:  "H6159",
		Name:   "desk",
		Properties: []Property{
			{Online: &online},
			{PowerState: &power},
			{Brightness: &brightness},
			{Color: &Color{R: 50, G: 50, B: 50}},
		},
	})

	state, err := d.State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	require.True(t, state.Online)
	require.True(t, state.On)
	require.Equal(t, 82, state.Brightness)
	require.Equal(t, &Color{R: 50, G: 50, B: 50}, state.Color)
	require.Nil(t, state.ColorTem)

	reqs := f.recorded()
	require.Len(t, reqs, 1)
	require.Equal(t, "device=aa%3Abb&model=H6159", reqs[0].Query)

	f.setStateCode(http.StatusUnauthorized)

	state, err = d.State(context.Background())
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestDeviceTransportError(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := testClient(srv)
	srv.Close()

	d := NewDevice(testDevices()[0], c.API())

	ok, err := d.TurnOn(context.Background())
	require.Error(t, err)
	require.False(t, ok)

	state, err := d.State(context.Background())
	require.Error(t, err)
	require.Nil(t, state)
}

func TestDeviceAccessors(t *testing.T) {
	_, d := testDevice(t)

	require.Equal(t, "desk", d.Name())
	require.Equal(t, "H6159", d.Model())
	require.Equal(t, "aa:bb", d.ID())
	require.True(t, d.Controllable())
	require.True(t, d.Retrievable())
	require.True(t, d.Supports("colorTem"))
	require.True(t, d.Supports("TURN"))
	require.False(t, d.Supports("scene"))

	cmds := d.SupportCmds()
	cmds[0] = "mutated"
	require.Equal(t, "turn", d.SupportCmds()[0])
}
