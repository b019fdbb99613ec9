package render

import (
	"image"
	"image/color"
	"image/draw"
)

// WithLevelAlpha sets the auto-level smoothing factor
func WithLevelAlpha(alpha float64) func(w *Waterfall) {
	return func(w *Waterfall) {
		w.levels = NewAutoLevel(alpha)
	}
}

// Waterfall is a scrolling time/frequency raster. Row 0 holds the newest
// frame; every pushed frame moves the history down by one row.
type Waterfall struct {
	img    *image.RGBA
	lut    *ColorLUT
	levels *AutoLevel
}

// NewWaterfall creates a black raster of the given size.
func NewWaterfall(width, height int, lut *ColorLUT, options ...func(w *Waterfall)) *Waterfall {
	w := Waterfall{
		lut:    lut,
		levels: NewAutoLevel(DefaultLevelAlpha),
	}

	for _, option := range options {
		option(&w)
	}

	w.Resize(width, height)
	return &w
}

// Resize recreates the raster, discarding history. Levels are kept.
func (w *Waterfall) Resize(width, height int) {
	w.img = image.NewRGBA(image.Rect(0, 0, max(0, width), max(0, height)))
	draw.Draw(w.img, w.img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// Push scrolls the raster and paints power, the visible slice of the latest
// frame, as the new top row. Empty slices are ignored.
func (w *Waterfall) Push(power []float64) {
	if len(power) == 0 {
		return
	}

	levels := w.levels.Update(power)

	b := w.img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return
	}

	stride := w.img.Stride
	if height > 1 {
		copy(w.img.Pix[stride:], w.img.Pix[:stride*(height-1)])
	}

	row := w.img.Pix[:stride]
	for px := 0; px < width; px++ {
		idx := px * len(power) / width
		c := w.lut.Map(levels.Normalize(power[idx]))

		o := px * 4
		row[o], row[o+1], row[o+2], row[o+3] = c.R, c.G, c.B, 0xff
	}
}

// Image returns the raster. It is reused between frames; encode or copy it
// before the next Push.
func (w *Waterfall) Image() *image.RGBA {
	return w.img
}

// Levels returns the current auto-level state.
func (w *Waterfall) Levels() Levels {
	return w.levels.Current()
}

// Reset blanks the raster and restores the initial levels.
func (w *Waterfall) Reset() {
	b := w.img.Bounds()
	w.levels.Reset()
	w.Resize(b.Dx(), b.Dy())
}
