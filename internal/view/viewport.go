package view

import "math"

const (
	DefaultZoomStep = 0.2
	DefaultMaxZoom  = 16.0

	minZoom    = 1.0
	defaultPan = 0.5
)

// WithZoomStep sets the relative zoom change per wheel notch
func WithZoomStep(step float64) func(v *Viewport) {
	return func(v *Viewport) {
		if step > 0 {
			v.step = step
		}
	}
}

// WithMaxZoom sets the zoom ceiling
func WithMaxZoom(zoom float64) func(v *Viewport) {
	return func(v *Viewport) {
		if zoom >= minZoom {
			v.maxZoom = zoom
		}
	}
}

// Viewport is the zoom/pan state of the spectrum display. Pan is the centre of
// the visible window as a fraction of the full frame, zoom is the
// magnification. Every mutation leaves the window fully inside [0, 1].
type Viewport struct {
	zoom    float64
	pan     float64
	step    float64
	maxZoom float64
}

// NewViewport returns a viewport showing the whole frame.
func NewViewport(options ...func(v *Viewport)) *Viewport {
	v := Viewport{
		step:    DefaultZoomStep,
		maxZoom: DefaultMaxZoom,
	}

	for _, option := range options {
		option(&v)
	}

	v.Reset()
	return &v
}

func (v *Viewport) Zoom() float64 { return v.zoom }
func (v *Viewport) Pan() float64  { return v.pan }

// Half returns half the visible fraction of the frame.
func (v *Viewport) Half() float64 {
	return (1 / v.zoom) / 2
}

// Reset returns to zoom 1, centred.
func (v *Viewport) Reset() {
	v.zoom = minZoom
	v.pan = defaultPan
}

// SetPan moves the window centre, clamped to keep the window inside the frame.
func (v *Viewport) SetPan(pan float64) {
	v.pan = pan
	v.clamp()
}

// VisibleRange returns the half-open bin range [start, end) visible in a frame
// of n bins. The range is never empty for n > 0.
func (v *Viewport) VisibleRange(n int) (int, int) {
	if n <= 0 {
		return 0, 0
	}

	half := v.Half()
	start := max(0, int(math.Floor((v.pan-half)*float64(n))))
	end := min(n, int(math.Ceil((v.pan+half)*float64(n))))

	if end <= start {
		start = min(start, n-1)
		end = start + 1
	}
	return start, end
}

// ApplyWheel zooms in for negative deltaY and out for positive deltaY, keeping
// the frequency under pointerFrac (0 at the left plot edge, 1 at the right)
// near the pointer. A zero delta is ignored.
func (v *Viewport) ApplyWheel(deltaY, pointerFrac float64) {
	if deltaY == 0 {
		return
	}

	dir := 1.0
	if deltaY > 0 {
		dir = -1
	}

	zoom := math.Max(minZoom, math.Min(v.maxZoom, v.zoom*(1+dir*v.step)))
	if zoom > minZoom {
		span := 1 / v.zoom
		v.pan = v.pan - span/2 + pointerFrac*span
	}

	v.zoom = zoom
	if v.zoom <= minZoom {
		v.zoom = minZoom
		v.pan = defaultPan
	}
	v.clamp()
}

// ApplyDrag pans by dx pixels of a plot plotW pixels wide. Dragging right
// reveals lower frequencies.
func (v *Viewport) ApplyDrag(dx, plotW float64) {
	if plotW <= 0 {
		return
	}
	v.pan -= dx / plotW * (1 / v.zoom)
	v.clamp()
}

func (v *Viewport) clamp() {
	half := v.Half()
	v.pan = math.Max(half, math.Min(1-half, v.pan))
}

// VisibleSlice returns the part of s visible through v.
func VisibleSlice[T any](s []T, v *Viewport) []T {
	start, end := v.VisibleRange(len(s))
	return s[start:end]
}

// PixelToFreq maps a horizontal pixel position to a frequency. left is the
// plot's left margin and width the full canvas width; visible holds the
// currently visible frequencies. Positions left of the plot have no frequency.
func PixelToFreq(x, left, width float64, visible []float64) (float64, bool) {
	if len(visible) == 0 || x < left || width <= left {
		return 0, false
	}

	frac := (x - left) / (width - left)
	first, last := visible[0], visible[len(visible)-1]
	return first + frac*(last-first), true
}
