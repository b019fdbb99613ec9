package render

import (
	"fmt"
	"image"
	"math"
)

const (
	labelSize    = 10.0
	bookmarkSize = 9.0
	curveWidth   = 1.5
)

var (
	backgroundColor = hexColor("#060a0f", 1)
	gridColor       = hexColor("#30363d", 0.6)
	labelColor      = hexColor("#484f58", 1)
	centerColor     = hexColor("#ff5050", 0.5)
	filterFill      = hexColor("#58a6ff", 0.12)
	filterStroke    = hexColor("#58a6ff", 0.4)
	curveColor      = hexColor("#00d4aa", 1)
	bookmarkColor   = hexColor("#00d4aa", 0.7)
	bookmarkLine    = hexColor("#00d4aa", 0.15)
	tunedColor      = hexColor("#58a6ff", 1)
	tunedLine       = hexColor("#58a6ff", 0.3)
	zoomColor       = hexColor("#8b949e", 1)
)

// SpectrumRenderer draws spectrum frames with axes, overlays and labels.
type SpectrumRenderer struct {
	layout    Layout
	annotator *Annotator
}

// NewSpectrumRenderer creates a renderer with the given margins.
func NewSpectrumRenderer(layout Layout) (*SpectrumRenderer, error) {
	ann, err := NewAnnotator()
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	return &SpectrumRenderer{layout: layout, annotator: ann}, nil
}

// Layout returns the plot margins.
func (r *SpectrumRenderer) Layout() Layout {
	return r.layout
}

// Render lays out the scene and draws it onto a new width x height image.
func (r *SpectrumRenderer) Render(scene Scene, width, height int) (*image.RGBA, Geometry, error) {
	g := ComputeGeometry(scene, r.layout, width, height)
	img := image.NewRGBA(image.Rect(0, 0, max(0, width), max(0, height)))

	if err := r.Draw(img, &g); err != nil {
		return nil, g, err
	}
	return img, g, nil
}

// Draw paints resolved geometry onto img.
func (r *SpectrumRenderer) Draw(img *image.RGBA, g *Geometry) error {
	fill(img, backgroundColor)
	if g.Empty {
		return nil
	}

	left := float64(g.Layout.Left)
	top := float64(g.Layout.Top)
	right := float64(g.Width)
	baseline := g.Baseline()

	ops := []struct {
		msg string
		fn  func() error
	}{
		{"drawing power grid", func() error {
			for _, t := range g.DBLines {
				hline(img, left, right, t.Pos, gridColor)
				y := int(math.Round(t.Pos)) + 3
				if err := r.annotator.DrawString(img, t.Label, g.Layout.Left-6, y, labelSize, AlignRight, labelColor); err != nil {
					return err
				}
			}
			return nil
		}},
		{"drawing frequency ticks", func() error {
			for _, t := range g.FreqTicks {
				vline(img, t.Pos, top, baseline, gridColor)
				x := int(math.Round(t.Pos))
				if err := r.annotator.DrawString(img, t.Label, x, g.Height-6, labelSize, AlignCenter, labelColor); err != nil {
					return err
				}
			}
			return nil
		}},
		{"drawing overlays", func() error {
			if g.ShowCenter {
				dashedVLine(img, g.CenterX, top, baseline, 4, 4, centerColor)
			}
			if g.ShowFilter {
				fillRect(img, g.Filter.X0, top, g.Filter.X1, baseline, filterFill)
				strokeRect(img, g.Filter.X0, top, g.Filter.X1, baseline, filterStroke)
			}
			return nil
		}},
		{"drawing curve", func() error {
			r.drawCurve(img, g)
			return nil
		}},
		{"drawing bookmarks", func() error {
			for _, m := range g.Bookmarks {
				fillColor, lineColor := bookmarkColor, bookmarkLine
				if m.Tuned {
					fillColor, lineColor = tunedColor, tunedLine
				}
				polygon(img, []Point{{m.X, baseline}, {m.X - 4, baseline + 8}, {m.X + 4, baseline + 8}}, image.NewUniform(fillColor))
				vline(img, m.X, top, baseline, lineColor)
			}
			return nil
		}},
		{"drawing zoom readout", func() error {
			if g.ZoomLabel == "" {
				return nil
			}
			return r.annotator.DrawString(img, g.ZoomLabel, g.Width-8, g.Layout.Top+12, labelSize, AlignRight, zoomColor)
		}},
	}
	for _, op := range ops {
		if err := op.fn(); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (r *SpectrumRenderer) drawCurve(img *image.RGBA, g *Geometry) {
	baseline := g.Baseline()
	left := float64(g.Layout.Left)

	area := make([]Point, 0, len(g.Curve)+2)
	area = append(area, g.Curve...)
	area = append(area, Point{left + g.PlotW, baseline}, Point{left, baseline})

	polygon(img, area, verticalGradient{
		c:      curveColor,
		a0:     0.15,
		a1:     0.01,
		y0:     float64(g.Layout.Top),
		y1:     baseline,
		bounds: img.Bounds(),
	})
	polyline(img, g.Curve, curveWidth, curveColor)
}

// Close releases font resources.
func (r *SpectrumRenderer) Close() error {
	return r.annotator.Close()
}
