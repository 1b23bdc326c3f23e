package govee

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Group broadcasts one command to a set of devices.  Every member receives
// the command even when another member fails, and the group succeeds only
// when all members succeed.
type Group struct {
	devices []*Device
	tracer  trace.Tracer
}

// Result is the outcome of a group command for one member.
type Result struct {
	Device *Device
	OK     bool
	Err    error
}

func NewGroup(devices ...*Device) *Group {
	return &Group{
		devices: devices,
		tracer:  otel.Tracer(module),
	}
}

func (g *Group) Devices() []*Device {
	return append([]*Device(nil), g.devices...)
}

func (g *Group) Names() []string {
	names := make([]string, 0, len(g.devices))
	for _, d := range g.devices {
		names = append(names, d.Name())
	}
	return names
}

func (g *Group) Len() int {
	return len(g.devices)
}

func (g *Group) TurnOn(ctx context.Context) (bool, error) {
	return Aggregate(CmdTurn, g.TurnOnResults(ctx))
}

func (g *Group) TurnOff(ctx context.Context) (bool, error) {
	return Aggregate(CmdTurn, g.TurnOffResults(ctx))
}

func (g *Group) SetBrightness(ctx context.Context, level int) (bool, error) {
	return Aggregate(CmdBrightness, g.SetBrightnessResults(ctx, level))
}

func (g *Group) SetRGBColor(ctx context.Context, c Color) (bool, error) {
	return Aggregate(CmdColor, g.SetRGBColorResults(ctx, c))
}

func (g *Group) SetHexColor(ctx context.Context, hex string) (bool, error) {
	return Aggregate(CmdColor, g.SetHexColorResults(ctx, hex))
}

func (g *Group) SetColorTemperature(ctx context.Context, kelvin int) (bool, error) {
	return Aggregate(CmdColorTem, g.SetColorTemperatureResults(ctx, kelvin))
}

func (g *Group) TurnOnResults(ctx context.Context) []Result {
	return g.fanOut(ctx, "Group/TurnOn", func(ctx context.Context, d *Device) (bool, error) {
		return d.TurnOn(ctx)
	})
}

func (g *Group) TurnOffResults(ctx context.Context) []Result {
	return g.fanOut(ctx, "Group/TurnOff", func(ctx context.Context, d *Device) (bool, error) {
		return d.TurnOff(ctx)
	})
}

func (g *Group) SetBrightnessResults(ctx context.Context, level int) []Result {
	return g.fanOut(ctx, "Group/SetBrightness", func(ctx context.Context, d *Device) (bool, error) {
		return d.SetBrightness(ctx, level)
	})
}

func (g *Group) SetRGBColorResults(ctx context.Context, c Color) []Result {
	return g.fanOut(ctx, "Group/SetRGBColor", func(ctx context.Context, d *Device) (bool, error) {
		return d.SetRGBColor(ctx, c)
	})
}

func (g *Group) SetHexColorResults(ctx context.Context, hex string) []Result {
	return g.fanOut(ctx, "Group/SetHexColor", func(ctx context.Context, d *Device) (bool, error) {
		return d.SetHexColor(ctx, hex)
	})
}

func (g *Group) SetColorTemperatureResults(ctx context.Context, kelvin int) []Result {
	return g.fanOut(ctx, "Group/SetColorTemperature", func(ctx context.Context, d *Device) (bool, error) {
		return d.SetColorTemperature(ctx, kelvin)
	})
}

// fanOut issues f to every member concurrently and waits for all of them.
// Results are in member order.
func (g *Group) fanOut(ctx context.Context, name string, f func(context.Context, *Device) (bool, error)) []Result {
	ctx, span := g.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.StringSlice("devices", g.Names()),
	))
	defer span.End()

	var (
		wg      sync.WaitGroup
		results = make([]Result, len(g.devices))
	)

	for i, d := range g.devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f(ctx, d)
			results[i] = Result{Device: d, OK: ok, Err: err}
		}()
	}

	wg.Wait()

	for _, r := range results {
		if !r.OK {
			span.SetStatus(codes.Error, "not all members succeeded")
			break
		}
	}

	return results
}

// Aggregate reduces member results to true when every member succeeded.
// Transport errors of the members are joined.
func Aggregate(cmd string, results []Result) (bool, error) {
	var (
		ok   = true
		errs []error
	)

	for _, r := range results {
		if !r.OK {
			ok = false
		}
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Device.Name(), r.Err))
		}
	}

	metricGroupCommands.WithLabelValues(cmd, strconv.FormatBool(ok)).Inc()

	return ok, errors.Join(errs...)
}
