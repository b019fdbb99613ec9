package render

import (
	"fmt"
	"math"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

const (
	// BookmarkTolerance is how close, in MHz, a bookmark must be to the tuned
	// frequency to be highlighted.
	BookmarkTolerance = 0.001

	maxTicks = 512
)

// Layout holds the plot margins in pixels. There is no right margin.
type Layout struct {
	Left   int // dB labels
	Top    int
	Bottom int // frequency labels and bookmark markers
}

// DefaultLayout matches the stock spectrum panel.
var DefaultLayout = Layout{Left: 48, Top: 8, Bottom: 24}

// Scene is everything needed to draw one spectrum frame.
type Scene struct {
	Frequencies []float64 // Visible bin frequencies in MHz
	Power       []float64 // Visible bin power in dB
	CenterMHz   float64
	TunedMHz    float64
	Mode        spectrum.Mode
	Bandwidths  spectrum.Bandwidths
	Bookmarks   []spectrum.Bookmark
	Zoom        float64
}

type Point struct {
	X, Y float64
}

// Tick is a labelled gridline. Pos is a y coordinate for power gridlines and
// an x coordinate for frequency ticks.
type Tick struct {
	Pos   float64
	Label string
}

// Band is a horizontal extent of the plot.
type Band struct {
	X0, X1 float64
}

// Marker is a bookmark position on the frequency axis.
type Marker struct {
	X     float64
	Name  string
	Tuned bool
}

// Geometry is the resolved drawing of a Scene on a canvas, in pixels. It is
// computed without touching any raster so it can be inspected directly.
type Geometry struct {
	Width, Height int
	Layout        Layout
	PlotW, PlotH  float64

	// Empty is set when there is nothing to plot; only the background is drawn.
	Empty bool

	DBMin, DBMax, DBStep float64
	DBLines              []Tick

	FreqStep  float64
	FreqTicks []Tick

	Curve []Point

	CenterX    float64
	ShowCenter bool

	Filter     Band
	ShowFilter bool

	Bookmarks []Marker

	ZoomLabel string
}

// Baseline returns the y coordinate of the bottom of the plot.
func (g *Geometry) Baseline() float64 {
	return float64(g.Layout.Top) + g.PlotH
}

// FreqTickStep picks a tick spacing in MHz for a visible span.
func FreqTickStep(span float64) float64 {
	switch {
	case span < 0.05:
		return 0.005
	case span < 0.1:
		return 0.01
	case span < 0.5:
		return 0.05
	case span < 1:
		return 0.1
	case span < 3:
		return 0.25
	case span > 10:
		return 1
	default:
		return 0.5
	}
}

// DBStep picks the power gridline spacing for a dB range.
func DBStep(dbRange float64) float64 {
	if dbRange <= 30 {
		return 5
	}
	return 10
}

// FormatFreqTick renders a tick label with enough decimals for the step.
func FormatFreqTick(mhz, step float64) string {
	switch {
	case step < 0.01:
		return fmt.Sprintf("%.4f", mhz)
	case step < 0.1:
		return fmt.Sprintf("%.3f", mhz)
	default:
		return fmt.Sprintf("%.2f", mhz)
	}
}

// ComputeGeometry lays out a scene on a width x height canvas.
func ComputeGeometry(scene Scene, layout Layout, width, height int) Geometry {
	g := Geometry{
		Width:  width,
		Height: height,
		Layout: layout,
		PlotW:  float64(width - layout.Left),
		PlotH:  float64(height - layout.Bottom - layout.Top),
	}

	n := min(len(scene.Frequencies), len(scene.Power))
	if n == 0 || g.PlotW <= 0 || g.PlotH <= 0 {
		g.Empty = true
		return g
	}
	freqs, power := scene.Frequencies[:n], scene.Power[:n]

	if scene.Zoom > 1 {
		g.ZoomLabel = fmt.Sprintf("%.1fx", scene.Zoom)
	}

	left := float64(layout.Left)
	baseline := g.Baseline()

	// power axis
	lo, hi := power[0], power[0]
	for _, v := range power[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	g.DBMin = math.Floor(lo/10) * 10
	g.DBMax = math.Ceil(hi/10) * 10
	if g.DBMax == g.DBMin {
		g.DBMax = g.DBMin + 10
	}
	dbRange := g.DBMax - g.DBMin
	g.DBStep = DBStep(dbRange)

	yOf := func(db float64) float64 {
		return baseline - (db-g.DBMin)/dbRange*g.PlotH
	}
	for db := g.DBMin; db <= g.DBMax; db += g.DBStep {
		g.DBLines = append(g.DBLines, Tick{Pos: yOf(db), Label: fmt.Sprintf("%.0f dB", db)})
	}

	// curve
	g.Curve = make([]Point, n)
	for i, v := range power {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		g.Curve[i] = Point{X: left + frac*g.PlotW, Y: yOf(v)}
	}

	// frequency axis
	freqStart, freqEnd := freqs[0], freqs[n-1]
	freqSpan := freqEnd - freqStart
	if freqSpan <= 0 {
		return g
	}
	xOf := func(mhz float64) float64 {
		return left + (mhz-freqStart)/freqSpan*g.PlotW
	}

	g.FreqStep = FreqTickStep(freqSpan)
	first := math.Ceil(freqStart/g.FreqStep) * g.FreqStep
	for k := 0; k < maxTicks; k++ {
		f := first + float64(k)*g.FreqStep
		if f > freqEnd+g.FreqStep*1e-9 {
			break
		}
		g.FreqTicks = append(g.FreqTicks, Tick{Pos: xOf(f), Label: FormatFreqTick(f, g.FreqStep)})
	}

	if scene.CenterMHz >= freqStart && scene.CenterMHz <= freqEnd {
		g.CenterX = xOf(scene.CenterMHz)
		g.ShowCenter = true
	}

	if scene.TunedMHz > 0 {
		bw := scene.Bandwidths.MHz(scene.Mode)
		x0 := xOf(scene.TunedMHz - bw/2)
		x1 := xOf(scene.TunedMHz + bw/2)
		if x1 > left && x0 < float64(width) {
			g.Filter = Band{X0: math.Max(left, x0), X1: math.Min(float64(width), x1)}
			g.ShowFilter = true
		}
	}

	for _, b := range scene.Bookmarks {
		if b.FrequencyMHz < freqStart || b.FrequencyMHz > freqEnd {
			continue
		}
		g.Bookmarks = append(g.Bookmarks, Marker{
			X:     xOf(b.FrequencyMHz),
			Name:  b.Name,
			Tuned: math.Abs(b.FrequencyMHz-scene.TunedMHz) < BookmarkTolerance,
		})
	}

	return g
}
