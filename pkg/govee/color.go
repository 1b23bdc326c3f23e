package govee

import (
	"fmt"
	"regexp"
	"strconv"
)

var hexColorRegex = regexp.MustCompile(`^#?([a-fA-F\d]{2})([a-fA-F\d]{2})([a-fA-F\d]{2})$`)

// White is returned by ParseHexColor for any input it cannot decode.
var White = Color{R: 255, G: 255, B: 255}

// Color is an RGB triple as the vendor API expects it.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// ParseHexColor decodes a six digit hex string, with or without a leading
// '#'.  Malformed input yields White.
func ParseHexColor(hex string) Color {
	m := hexColorRegex.FindStringSubmatch(hex)
	if m == nil {
		return White
	}

	channel := func(s string) int {
		v, _ := strconv.ParseUint(s, 16, 8)
		return int(v)
	}

	return Color{
		R: channel(m[1]),
		G: channel(m[2]),
		B: channel(m[3]),
	}
}

// Hex renders c as "#rrggbb".  Channels outside [0,255] are clamped for
// display only; commands carry the values unchanged.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", clampChannel(c.R), clampChannel(c.G), clampChannel(c.B))
}

// String renders the channels as sent, e.g. "rgb(300,0,12)".
func (c Color) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func clampChannel(v int) int {
	return min(max(v, 0), 255)
}
