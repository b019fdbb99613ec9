package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// LUTSize is the number of entries in a ColorLUT.
const LUTSize = 256

// Stop is one anchor of a piecewise-linear color gradient.
type Stop struct {
	Pos   float64 // Position in [0, 1]
	Color colorful.Color
}

// StopConfig is the textual form of a Stop, as found in config files.
type StopConfig struct {
	Pos   float64 `yaml:"pos"`
	Color string  `yaml:"color"` // "#rrggbb"
}

// ParseStops converts configured stops into gradient anchors.
func ParseStops(configs []StopConfig) ([]Stop, error) {
	stops := make([]Stop, 0, len(configs))
	for i, c := range configs {
		col, err := colorful.Hex(c.Color)
		if err != nil {
			return nil, fmt.Errorf("parsing color stop %d: %w", i, err)
		}
		stops = append(stops, Stop{Pos: c.Pos, Color: col})
	}
	return stops, nil
}

// ColorLUT maps a normalized power value to a color. It is immutable once
// built and safe to share between renderers.
type ColorLUT struct {
	entries [LUTSize]color.RGBA
}

// NewColorLUT builds a lookup table by linear RGB interpolation between stops.
// Stops are sorted by position; the first must sit at 0 and the last at 1.
func NewColorLUT(stops []Stop) (*ColorLUT, error) {
	if len(stops) < 2 {
		return nil, errors.New("color gradient needs at least two stops")
	}

	sorted := make([]Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	if sorted[0].Pos != 0 || sorted[len(sorted)-1].Pos != 1 {
		return nil, fmt.Errorf("color gradient must span [0, 1], got [%.2f, %.2f]", sorted[0].Pos, sorted[len(sorted)-1].Pos)
	}

	var lut ColorLUT
	si := 0
	for i := 0; i < LUTSize; i++ {
		v := float64(i) / (LUTSize - 1)
		for si < len(sorted)-2 && v > sorted[si+1].Pos {
			si++
		}

		s0, s1 := sorted[si], sorted[si+1]
		t := 0.0
		if s1.Pos > s0.Pos {
			t = (v - s0.Pos) / (s1.Pos - s0.Pos)
		}

		r0, g0, b0 := channels(s0.Color)
		r1, g1, b1 := channels(s1.Color)
		lut.entries[i] = color.RGBA{
			R: uint8(r0 + (r1-r0)*t),
			G: uint8(g0 + (g1-g0)*t),
			B: uint8(b0 + (b1-b0)*t),
			A: 0xff,
		}
	}

	return &lut, nil
}

func channels(c colorful.Color) (float64, float64, float64) {
	return math.Round(c.R * 255), math.Round(c.G * 255), math.Round(c.B * 255)
}

// At returns entry i, clamped to the table.
func (l *ColorLUT) At(i int) color.RGBA {
	return l.entries[max(0, min(LUTSize-1, i))]
}

// Map returns the color for a normalized value in [0, 1]. Out of range values
// are clamped.
func (l *ColorLUT) Map(norm float64) color.RGBA {
	if math.IsNaN(norm) {
		return l.entries[0]
	}
	norm = math.Max(0, math.Min(1, norm))
	return l.entries[int(norm*(LUTSize-1))]
}
