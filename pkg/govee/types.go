package govee

import "encoding/json"

// Command names understood by the control endpoint.
const (
	CmdTurn       = "turn"
	CmdBrightness = "brightness"
	CmdColor      = "color"
	CmdColorTem   = "colorTem"
)

const (
	powerOn  = "on"
	powerOff = "off"
)

// StatusOK is the only envelope code treated as success.
const StatusOK = 200

// Response is the envelope returned by every API call.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (r *Response[T]) OK() bool {
	return r != nil && r.Code == StatusOK
}

// DeviceInfo is a raw device descriptor from the device roster.
type DeviceInfo struct {
	Device       string   `json:"device"`
	Model        string   `json:"model"`
	Name         string   `json:"deviceName"`
	Controllable bool     `json:"controllable"`
	Retrievable  bool     `json:"retrievable"`
	SupportCmds  []string `json:"supportCmds"`
}

type deviceList struct {
	Devices []DeviceInfo `json:"devices"`
}

// DeviceState is the payload of a state query.
type DeviceState struct {
	Device     string     `json:"device"`
	Model      string     `json:"model"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// Property is one entry of the properties list.  The API may report every
// property in one entry or one property per entry.
type Property struct {
	Online     *bool   `json:"online,omitempty"`
	PowerState *string `json:"powerState,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
	Color      *Color  `json:"color,omitempty"`
	ColorTem   *int    `json:"colorTem,omitempty"`
}

// State is a point in time snapshot of a device, flattened from the property
// list.
type State struct {
	Device     string `json:"device"`
	Model      string `json:"model"`
	Name       string `json:"name"`
	Online     bool   `json:"online"`
	On         bool   `json:"on"`
	Brightness int    `json:"brightness"`
	Color      *Color `json:"color,omitempty"`
	ColorTem   *int   `json:"color_tem,omitempty"`
}

// Snapshot merges the property list into a State.  Later entries win.
func (s DeviceState) Snapshot() *State {
	st := &State{
		Device: s.Device,
		Model:  s.Model,
		Name:   s.Name,
	}

	for _, p := range s.Properties {
		if p.Online != nil {
			st.Online = *p.Online
		}
		if p.PowerState != nil {
			st.On = *p.PowerState == powerOn
		}
		if p.Brightness != nil {
			st.Brightness = *p.Brightness
		}
		if p.Color != nil {
			c := *p.Color
			st.Color = &c
		}
		if p.ColorTem != nil {
			t := *p.ColorTem
			st.ColorTem = &t
		}
	}

	return st
}

// Command is a named control directive.
type Command struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type controlRequest struct {
	Device string  `json:"device"`
	Model  string  `json:"model"`
	Cmd    Command `json:"cmd"`
}

func PowerCommand(on bool) Command {
	if on {
		return Command{Name: CmdTurn, Value: powerOn}
	}
	return Command{Name: CmdTurn, Value: powerOff}
}

func BrightnessCommand(level int) Command {
	return Command{Name: CmdBrightness, Value: level}
}

func ColorCommand(c Color) Command {
	return Command{Name: CmdColor, Value: c}
}

func TemperatureCommand(kelvin int) Command {
	return Command{Name: CmdColorTem, Value: kelvin}
}

// Empty is the data payload of control responses.
type Empty struct{}

func (e *Empty) UnmarshalJSON([]byte) error { return nil }

var _ json.Unmarshaler = (*Empty)(nil)
