package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

// hexColor parses a palette entry. Palette strings are constants, so a parse
// failure is a programming error.
func hexColor(hex string, alpha float64) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		panic(err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(alpha * 255))}
}

func fill(img *image.RGBA, c color.Color) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// fillRect blends c over the rectangle spanning [x0, x1) x [y0, y1).
func fillRect(img *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	r := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func strokeRect(img *image.RGBA, x0, y0, x1, y1 float64, c color.Color) {
	hline(img, x0, x1, y0, c)
	hline(img, x0, x1, y1-1, c)
	vline(img, x0, y0, y1, c)
	vline(img, x1-1, y0, y1, c)
}

func hline(img *image.RGBA, x0, x1, y float64, c color.Color) {
	fillRect(img, x0, y, x1, y+1, c)
}

func vline(img *image.RGBA, x, y0, y1 float64, c color.Color) {
	fillRect(img, x, y0, x+1, y1, c)
}

// dashedVLine draws a vertical line of dash-long segments separated by gap.
func dashedVLine(img *image.RGBA, x, y0, y1, dash, gap float64, c color.Color) {
	for y := y0; y < y1; y += dash + gap {
		vline(img, x, y, math.Min(y+dash, y1), c)
	}
}

// polygon is a closed path filled through the anti-aliasing rasterizer.
func polygon(img *image.RGBA, pts []Point, src image.Image) {
	if len(pts) < 3 {
		return
	}

	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(img, b, src, image.Point{})
}

// polyline strokes connected segments of the given width. Each segment is
// rasterized as a quad; coverage saturates where quads overlap at joints.
func polyline(img *image.RGBA, pts []Point, width float64, c color.Color) {
	if len(pts) < 2 {
		return
	}

	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	hw := width / 2
	for i := 1; i < len(pts); i++ {
		p0, p1 := pts[i-1], pts[i]
		dx, dy := p1.X-p0.X, p1.Y-p0.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw

		z.MoveTo(float32(p0.X+nx), float32(p0.Y+ny))
		z.LineTo(float32(p1.X+nx), float32(p1.Y+ny))
		z.LineTo(float32(p1.X-nx), float32(p1.Y-ny))
		z.LineTo(float32(p0.X-nx), float32(p0.Y-ny))
		z.ClosePath()
	}
	z.Draw(img, b, image.NewUniform(c), image.Point{})
}

// verticalGradient is an image whose alpha fades linearly between y0 and y1.
type verticalGradient struct {
	c      color.NRGBA
	a0, a1 float64
	y0, y1 float64
	bounds image.Rectangle
}

func (g verticalGradient) ColorModel() color.Model { return color.NRGBAModel }
func (g verticalGradient) Bounds() image.Rectangle { return g.bounds }

func (g verticalGradient) At(_, y int) color.Color {
	t := 0.0
	if g.y1 > g.y0 {
		t = math.Max(0, math.Min(1, (float64(y)-g.y0)/(g.y1-g.y0)))
	}
	c := g.c
	c.A = uint8(math.Round((g.a0 + (g.a1-g.a0)*t) * 255))
	return c
}
