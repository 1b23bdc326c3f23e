package govee

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

var ErrListDevices = errors.New("failed to list devices")

// Client is the entry point for an account.  The device roster is fetched
// on first use and kept until Refresh is called.
type Client struct {
	api    *API
	logger *slog.Logger

	mtx     sync.Mutex
	loaded  bool
	devices []*Device
	byName  map[string]*Device
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	return &Client{
		api:    NewAPI(cfg, logger, opts...),
		logger: logger.With("module", module),
		byName: make(map[string]*Device),
	}
}

// API returns the raw transport the client and its devices share, for calls
// that need the full response envelope rather than a boolean.
func (c *Client) API() *API {
	return c.api
}

// Devices returns the cached roster, fetching it on the first call.
func (c *Client) Devices(ctx context.Context) ([]*Device, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if !c.loaded {
		if err := c.load(ctx); err != nil {
			return nil, err
		}
	}

	return slices.Clone(c.devices), nil
}

// Refresh replaces the cached roster with a fresh one.  The previous roster is
// kept when the fetch fails.
func (c *Client) Refresh(ctx context.Context) ([]*Device, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.load(ctx); err != nil {
		return nil, err
	}

	return slices.Clone(c.devices), nil
}

// load must be called with mtx held.
func (c *Client) load(ctx context.Context) error {
	resp, err := c.api.ListDevices(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to fetch devices")
	}

	if !resp.OK() {
		return errors.Wrapf(ErrListDevices, "code %d: %s", resp.Code, resp.Message)
	}

	var (
		devices []*Device
		byName  = make(map[string]*Device, len(resp.Data))
	)

	for _, info := range resp.Data {
		d := NewDevice(info, c.api)
		if _, ok := byName[info.Name]; ok {
			// Keep the position of the first entry, the last one wins.
			idx := slices.IndexFunc(devices, func(x *Device) bool { return x.Name() == info.Name })
			devices[idx] = d
		} else {
			devices = append(devices, d)
		}
		byName[info.Name] = d
	}

	c.devices = devices
	c.byName = byName
	c.loaded = true

	c.logger.Info("loaded devices", "count", len(devices))

	return nil
}

// Device looks up a cached device by its exact name.  It does not fetch the
// roster.
func (c *Client) Device(name string) (*Device, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	d, ok := c.byName[name]
	return d, ok
}

func (c *Client) DeviceNames(ctx context.Context) ([]string, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}

	return names, nil
}

func (c *Client) AllControlGroup(ctx context.Context) (*Group, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	return NewGroup(devices...), nil
}

// ControlGroup returns a group of the named devices in roster order.  Names
// without a device are ignored.
func (c *Client) ControlGroup(ctx context.Context, names ...string) (*Group, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}

	var members []*Device
	for _, d := range devices {
		if slices.Contains(names, d.Name()) {
			members = append(members, d)
		}
	}

	return NewGroup(members...), nil
}

func (c *Client) State(ctx context.Context, device, model string) (*Response[DeviceState], error) {
	return c.api.GetDeviceState(ctx, device, model)
}

func (c *Client) SetPower(ctx context.Context, device, model string, on bool) (*Response[Empty], error) {
	return c.api.SetPower(ctx, device, model, on)
}

func (c *Client) SetBrightness(ctx context.Context, device, model string, level int) (*Response[Empty], error) {
	return c.api.SetBrightness(ctx, device, model, level)
}

func (c *Client) SetColor(ctx context.Context, device, model string, color Color) (*Response[Empty], error) {
	return c.api.SetColor(ctx, device, model, color)
}

func (c *Client) SetTemperature(ctx context.Context, device, model string, kelvin int) (*Response[Empty], error) {
	return c.api.SetTemperature(ctx, device, model, kelvin)
}
