package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme names a predefined waterfall gradient.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Black, navy, cyan, green, yellow, red
	GrayscaleTheme ColorTheme = "grayscale" // Black to white
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	themeSamples = 9
)

// ParseTheme validates a theme name. An empty name selects ClassicTheme.
func ParseTheme(s string) (ColorTheme, error) {
	t := ColorTheme(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return ClassicTheme, nil
	}
	if _, err := ThemeStops(t); err != nil {
		return "", err
	}
	return t, nil
}

// DefaultStops returns the classic waterfall gradient.
func DefaultStops() []Stop {
	return []Stop{
		{0, colorful.Color{}},
		{0.15, rgb(0, 0, 120)},
		{0.3, rgb(0, 180, 255)},
		{0.5, rgb(0, 255, 80)},
		{0.75, rgb(255, 255, 0)},
		{1, rgb(255, 0, 0)},
	}
}

// ThemeStops returns the gradient stops of a predefined theme.
func ThemeStops(theme ColorTheme) ([]Stop, error) {
	switch theme {
	case ClassicTheme:
		return DefaultStops(), nil

	case GrayscaleTheme:
		return sampleStops(func(p float64) colorful.Color {
			v := math.Pow(p, 0.7)
			return colorful.Color{R: v, G: v, B: v}
		}), nil

	case JungleTheme:
		return sampleStops(func(p float64) colorful.Color {
			return colorful.Hsv(120-(p*60), 1, 0.3+(math.Pow(p, 0.6)*0.7))
		}), nil

	case ThermalTheme:
		return []Stop{
			{0, colorful.Color{}},
			{0.33, rgb(255, 0, 0)},
			{0.66, rgb(255, 255, 0)},
			{1, rgb(255, 255, 255)},
		}, nil

	case MarineTheme:
		return sampleStops(func(p float64) colorful.Color {
			return colorful.Hsv(240-(p*60), 1-(p*0.8), 0.3+(math.Pow(p, 0.6)*0.7))
		}), nil

	default:
		return nil, fmt.Errorf("unknown color theme: %s", theme)
	}
}

// ThemeLUT builds the lookup table for a predefined theme.
func ThemeLUT(theme ColorTheme) (*ColorLUT, error) {
	stops, err := ThemeStops(theme)
	if err != nil {
		return nil, err
	}
	return NewColorLUT(stops)
}

// sampleStops approximates a continuous gradient with evenly spaced stops.
func sampleStops(fn func(float64) colorful.Color) []Stop {
	stops := make([]Stop, themeSamples)
	for i := range stops {
		p := float64(i) / (themeSamples - 1)
		stops[i] = Stop{Pos: p, Color: fn(p).Clamped()}
	}
	return stops
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}
