package lights

import (
	"context"
	"errors"
	"strings"

	"github.com/zachfi/govee/pkg/govee"
)

var (
	ErrEmptyRequest   = errors.New("request has no action")
	ErrInvalidState   = errors.New("state must be on or off")
	ErrConflictColors = errors.New("color and rgb are mutually exclusive")
	ErrUnknownDevice  = errors.New("unknown device")
)

// Request is a control request for a set of devices, shared by the HTTP and
// MQTT surfaces.  Actions are applied in field order.
type Request struct {
	Devices    []string     `json:"devices,omitempty"`
	State      string       `json:"state,omitempty"`
	Brightness *int         `json:"brightness,omitempty"`
	Color      string       `json:"color,omitempty"`
	RGB        *govee.Color `json:"rgb,omitempty"`
	ColorTemp  *int         `json:"color_temp,omitempty"`
}

// Validate checks the shape of the request.  Values are not range checked,
// the API decides what it accepts.
func (r Request) Validate() error {
	switch strings.ToLower(r.State) {
	case "", "on", "off":
	default:
		return ErrInvalidState
	}

	if r.Color != "" && r.RGB != nil {
		return ErrConflictColors
	}

	if r.State == "" && r.Brightness == nil && r.Color == "" && r.RGB == nil && r.ColorTemp == nil {
		return ErrEmptyRequest
	}

	return nil
}

// StepResult is the outcome of one action of a request.
type StepResult struct {
	Cmd    string   `json:"cmd"`
	OK     bool     `json:"ok"`
	Failed []string `json:"failed,omitempty"`
}

type Response struct {
	OK      bool         `json:"ok"`
	Devices []string     `json:"devices"`
	Steps   []StepResult `json:"steps"`
}

type step struct {
	cmd string
	run func(context.Context, *govee.Group) []govee.Result
}

func (r Request) steps() []step {
	var steps []step

	switch strings.ToLower(r.State) {
	case "on":
		steps = append(steps, step{govee.CmdTurn, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.TurnOnResults(ctx)
		}})
	case "off":
		steps = append(steps, step{govee.CmdTurn, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.TurnOffResults(ctx)
		}})
	}

	if r.Brightness != nil {
		level := *r.Brightness
		steps = append(steps, step{govee.CmdBrightness, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.SetBrightnessResults(ctx, level)
		}})
	}

	switch {
	case r.RGB != nil:
		c := *r.RGB
		steps = append(steps, step{govee.CmdColor, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.SetRGBColorResults(ctx, c)
		}})
	case r.Color != "":
		hex := r.Color
		steps = append(steps, step{govee.CmdColor, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.SetHexColorResults(ctx, hex)
		}})
	}

	if r.ColorTemp != nil {
		kelvin := *r.ColorTemp
		steps = append(steps, step{govee.CmdColorTem, func(ctx context.Context, g *govee.Group) []govee.Result {
			return g.SetColorTemperatureResults(ctx, kelvin)
		}})
	}

	return steps
}

// apply runs every step against the group.  A failed step does not stop the
// following ones.
func (r Request) apply(ctx context.Context, g *govee.Group) (*Response, error) {
	resp := &Response{
		OK:      true,
		Devices: g.Names(),
	}

	var errs []error
	for _, s := range r.steps() {
		results := s.run(ctx, g)

		ok, err := govee.Aggregate(s.cmd, results)
		if err != nil {
			errs = append(errs, err)
		}

		sr := StepResult{Cmd: s.cmd, OK: ok}
		for _, res := range results {
			if !res.OK {
				sr.Failed = append(sr.Failed, res.Device.Name())
			}
		}

		resp.Steps = append(resp.Steps, sr)
		resp.OK = resp.OK && ok
	}

	return resp, errors.Join(errs...)
}
