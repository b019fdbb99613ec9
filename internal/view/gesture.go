package view

import "math"

// DefaultDragThreshold is the horizontal travel in pixels a press must exceed
// to count as a drag rather than a click.
const DefaultDragThreshold = 3.0

// Gesture tracks one press/move/release sequence over the plot. Panning is
// anchored on the pan at press time, so a drag that returns to its origin
// restores the original view exactly.
type Gesture struct {
	threshold float64

	active   bool
	moved    bool
	startX   float64
	startPan float64
}

// NewGesture creates a gesture tracker. A non-positive threshold selects
// DefaultDragThreshold.
func NewGesture(threshold float64) *Gesture {
	if threshold <= 0 {
		threshold = DefaultDragThreshold
	}
	return &Gesture{threshold: threshold}
}

// Active reports whether a press is in progress.
func (g *Gesture) Active() bool {
	return g.active
}

// Press starts a gesture at x.
func (g *Gesture) Press(x float64, v *Viewport) {
	g.active = true
	g.moved = false
	g.startX = x
	g.startPan = v.Pan()
}

// Move pans v to follow the pointer at x.
func (g *Gesture) Move(x, plotW float64, v *Viewport) {
	if !g.active {
		return
	}

	dx := x - g.startX
	v.SetPan(g.startPan)
	v.ApplyDrag(dx, plotW)

	if math.Abs(dx) > g.threshold {
		g.moved = true
	}
}

// Release ends the gesture and reports whether it was a click.
func (g *Gesture) Release() bool {
	if !g.active {
		return false
	}
	g.active = false
	return !g.moved
}

// Cancel abandons the gesture without producing a click, e.g. when the
// pointer leaves the canvas.
func (g *Gesture) Cancel() {
	g.active = false
	g.moved = false
}
