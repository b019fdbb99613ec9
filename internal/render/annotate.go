package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const dpi = 72.0

// Align is the horizontal anchoring of a label relative to its x position.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Annotator draws text labels onto RGBA rasters using the embedded Go Mono font.
type Annotator struct {
	font    *truetype.Font
	context *freetype.Context
	faces   map[float64]font.Face
}

// NewAnnotator parses the embedded font and prepares a drawing context.
func NewAnnotator() (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetHinting(font.HintingFull)

	return &Annotator{
		font:    parsedFont,
		context: context,
		faces:   make(map[float64]font.Face),
	}, nil
}

func (a *Annotator) face(size float64) font.Face {
	f, ok := a.faces[size]
	if !ok {
		f = truetype.NewFace(a.font, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		a.faces[size] = f
	}
	return f
}

// Measure returns the advance width of s in pixels.
func (a *Annotator) Measure(s string, size float64) int {
	return font.MeasureString(a.face(size), s).Round()
}

// DrawString draws s with its baseline at y, anchored at x according to align.
func (a *Annotator) DrawString(img *image.RGBA, s string, x, y int, size float64, align Align, c color.Color) error {
	switch align {
	case AlignCenter:
		x -= a.Measure(s, size) / 2
	case AlignRight:
		x -= a.Measure(s, size)
	}

	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)
	a.context.SetSrc(image.NewUniform(c))
	a.context.SetFontSize(size)

	if _, err := a.context.DrawString(s, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing label %q: %w", s, err)
	}
	return nil
}

// Close releases the cached font faces.
func (a *Annotator) Close() error {
	var errs []error
	for size, f := range a.faces {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(a.faces, size)
	}
	return errors.Join(errs...)
}
