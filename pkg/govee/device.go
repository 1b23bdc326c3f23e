package govee

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Device is a handle for one light registered to the account.  Operations
// report whether the API accepted the command; a rejection is not an error.
type Device struct {
	info DeviceInfo
	api  *API
}

func NewDevice(info DeviceInfo, api *API) *Device {
	info.SupportCmds = slices.Clone(info.SupportCmds)

	return &Device{
		info: info,
		api:  api,
	}
}

func (d *Device) Name() string          { return d.info.Name }
func (d *Device) Model() string         { return d.info.Model }
func (d *Device) ID() string            { return d.info.Device }
func (d *Device) Controllable() bool    { return d.info.Controllable }
func (d *Device) Retrievable() bool     { return d.info.Retrievable }
func (d *Device) SupportCmds() []string { return slices.Clone(d.info.SupportCmds) }

// Supports reports whether the device lists cmd as a supported command.  The
// roster is not consistent about case, so the match ignores it.
func (d *Device) Supports(cmd string) bool {
	return slices.ContainsFunc(d.info.SupportCmds, func(s string) bool {
		return strings.EqualFold(s, cmd)
	})
}

func (d *Device) TurnOn(ctx context.Context) (bool, error) {
	return d.send(ctx, "Device/TurnOn", PowerCommand(true))
}

func (d *Device) TurnOff(ctx context.Context) (bool, error) {
	return d.send(ctx, "Device/TurnOff", PowerCommand(false))
}

func (d *Device) SetBrightness(ctx context.Context, level int) (bool, error) {
	return d.send(ctx, "Device/SetBrightness", BrightnessCommand(level), attribute.Int("brightness", level))
}

func (d *Device) SetRGBColor(ctx context.Context, c Color) (bool, error) {
	return d.send(ctx, "Device/SetRGBColor", ColorCommand(c), attribute.String("color", c.String()))
}

// SetHexColor decodes hex with ParseHexColor, so malformed input sets the
// device to white.
func (d *Device) SetHexColor(ctx context.Context, hex string) (bool, error) {
	return d.send(ctx, "Device/SetHexColor", ColorCommand(ParseHexColor(hex)), attribute.String("hex", hex))
}

func (d *Device) SetColorTemperature(ctx context.Context, kelvin int) (bool, error) {
	return d.send(ctx, "Device/SetColorTemperature", TemperatureCommand(kelvin), attribute.Int("temp", kelvin))
}

// State returns the current device state, or nil when the API does not
// answer with code 200.
func (d *Device) State(ctx context.Context) (*State, error) {
	ctx, span := d.api.tracer.Start(ctx, "Device/State", trace.WithAttributes(d.attributes()...))
	defer span.End()

	resp, err := d.api.GetDeviceState(ctx, d.info.Device, d.info.Model)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !resp.OK() {
		span.SetAttributes(attribute.Bool("rejected", true))
		return nil, nil
	}

	return resp.Data.Snapshot(), nil
}

func (d *Device) send(ctx context.Context, name string, cmd Command, attrs ...attribute.KeyValue) (bool, error) {
	ctx, span := d.api.tracer.Start(ctx, name, trace.WithAttributes(append(d.attributes(), attrs...)...))
	defer span.End()

	resp, err := d.api.SendCommand(ctx, d.info.Device, d.info.Model, cmd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if !resp.OK() {
		d.api.logger.Debug("command rejected", "device", d.info.Name, "cmd", cmd.Name, "code", resp.Code, "message", resp.Message)
		span.SetAttributes(attribute.Bool("rejected", true))
		return false, nil
	}

	span.SetStatus(codes.Ok, "ok")
	return true, nil
}

func (d *Device) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("device_name", d.info.Name),
		attribute.String("device_model", d.info.Model),
	}
}
