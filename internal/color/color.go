// Package color provides the RGB value driven onto a channel's outputs.
package color

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Max is the full intensity of a single component.
const Max = 100

// Color is a red/green/blue triple with every component in [0, Max].
// The zero value is Off.
type Color struct {
	r, g, b float64
}

// Off is the all-dark color.
var Off = Color{}

// New builds a Color, clamping out-of-range components instead of rejecting them.
func New(r, g, b float64) Color {
	return Color{r: clamp(r), g: clamp(g), b: clamp(b)}
}

// R returns the red intensity.
func (c Color) R() float64 { return c.r }

// G returns the green intensity.
func (c Color) G() float64 { return c.g }

// B returns the blue intensity.
func (c Color) B() float64 { return c.b }

// IsOff reports whether every component is zero.
func (c Color) IsOff() bool {
	return c == Off
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%g,%g,%g)", c.r, c.g, c.b)
}

// Parse reads a "#rrggbb" (or "#rgb") hex string. Each 0..255 byte is scaled
// to 0..Max and rounded.
func Parse(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	hex, err := colorful.Hex(s)
	if err != nil {
		return Off, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return New(
		math.Round(hex.R*Max),
		math.Round(hex.G*Max),
		math.Round(hex.B*Max),
	), nil
}

// MustParse is like Parse but panics on malformed input. Meant for constants.
func MustParse(s string) Color {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, Max))
}
