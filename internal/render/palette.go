package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme is a colour scheme for signal strength.
type Theme string

const (
	ZonesTheme     Theme = "zones"     // five neon bands, one per strength zone
	ClassicTheme   Theme = "classic"   // blue to red
	GrayscaleTheme Theme = "grayscale" // black to white
	JungleTheme    Theme = "jungle"    // dark green to yellow
	ThermalTheme   Theme = "thermal"   // black to red to yellow to white
	MarineTheme    Theme = "marine"    // deep blue to cyan to white

	DefaultColorMapSize = 256

	DefaultStrengthMin = -100.0
	DefaultStrengthMax = -30.0
)

var themes = map[Theme]func(float64) colorful.Color{
	ClassicTheme: func(p float64) colorful.Color {
		return colorful.Hsv(240-p*240, 0.9+p*0.1, math.Pow(p, 0.7))
	},
	GrayscaleTheme: func(p float64) colorful.Color {
		v := math.Pow(p, 0.7)
		return colorful.Color{R: v, G: v, B: v}
	},
	JungleTheme: func(p float64) colorful.Color {
		return colorful.Hsv(120-p*60, 1, 0.3+math.Pow(p, 0.6)*0.7)
	},
	ThermalTheme: func(p float64) colorful.Color {
		black, red := colorful.Color{}, colorful.Color{R: 1}
		yellow, white := colorful.Color{R: 1, G: 1}, colorful.Color{R: 1, G: 1, B: 1}
		switch {
		case p < 1.0/3:
			return black.BlendRgb(red, p*3)
		case p < 2.0/3:
			return red.BlendRgb(yellow, (p-1.0/3)*3)
		default:
			return yellow.BlendRgb(white, (p-2.0/3)*3)
		}
	},
	MarineTheme: func(p float64) colorful.Color {
		return colorful.Hsv(240-p*60, 1-p*0.8, 0.3+math.Pow(p, 0.6)*0.7)
	},
}

// zone bands, strongest first: level >= min gets the colour
var zoneBands = []struct {
	min   float64
	color colorful.Color
}{
	{-50, mustParseHex("#FF0055")},
	{-60, mustParseHex("#FF9900")},
	{-70, mustParseHex("#FFEE00")},
	{-80, mustParseHex("#00FFCC")},
	{math.Inf(-1), mustParseHex("#0066FF")},
}

// Palette maps a strength in dBm to a colour.
type Palette interface {
	Color(dBm float64) colorful.Color
}

// StrengthBounds is the dBm range spread over a gradient palette.
type StrengthBounds struct {
	Min float64
	Max float64
}

// ZonePalette colours by strength band.
type ZonePalette struct{}

func (ZonePalette) Color(dBm float64) colorful.Color {
	for _, band := range zoneBands {
		if dBm >= band.min {
			return band.color
		}
	}

	return zoneBands[len(zoneBands)-1].color
}

// ColorMapper is a gradient palette with a precomputed lookup table.
type ColorMapper struct {
	colors   []colorful.Color
	theme    func(float64) colorful.Color
	name     Theme
	min      float64
	perIndex float64
}

// NewColorMapper creates a gradient palette over bounds. Unknown themes are an error.
func NewColorMapper(theme Theme, bounds StrengthBounds, size int) (*ColorMapper, error) {
	fn, ok := themes[theme]
	if !ok {
		return nil, fmt.Errorf("unknown colour theme '%s'", theme)
	}
	if size < 2 {
		size = DefaultColorMapSize
	}

	cm := ColorMapper{
		colors: make([]colorful.Color, size),
		theme:  fn,
		name:   theme,
	}
	for i := range cm.colors {
		cm.colors[i] = fn(float64(i) / float64(size-1)).Clamped()
	}
	cm.UpdateBounds(bounds)

	return &cm, nil
}

// UpdateBounds changes the dBm range. An empty range is widened to 1 dB.
func (cm *ColorMapper) UpdateBounds(bounds StrengthBounds) {
	span := bounds.Max - bounds.Min
	if span <= 0 {
		span = 1
	}

	cm.min = bounds.Min
	cm.perIndex = span / float64(len(cm.colors)-1)
}

func (cm *ColorMapper) Color(dBm float64) colorful.Color {
	i := int(math.Round((dBm - cm.min) / cm.perIndex))
	switch {
	case i < 0:
		return cm.colors[0]
	case i >= len(cm.colors):
		return cm.colors[len(cm.colors)-1]
	default:
		return cm.colors[i]
	}
}

func (cm *ColorMapper) Theme() Theme { return cm.name }

// NewPalette returns the palette for theme; gradient themes span bounds.
func NewPalette(theme Theme, bounds StrengthBounds) (Palette, error) {
	if theme == "" || theme == ZonesTheme {
		return ZonePalette{}, nil
	}

	return NewColorMapper(theme, bounds, DefaultColorMapSize)
}

func toRGBA(c colorful.Color, alpha uint8) color.RGBA {
	r, g, b := c.Clamped().RGB255()

	// premultiplied
	return color.RGBA{
		R: uint8(uint16(r) * uint16(alpha) / 255),
		G: uint8(uint16(g) * uint16(alpha) / 255),
		B: uint8(uint16(b) * uint16(alpha) / 255),
		A: alpha,
	}
}

// mustParseHex parses a hex colour and panics on malformed input.
func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("mustParseHex: " + err.Error())
	}
	return c
}
