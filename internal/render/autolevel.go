package render

const (
	DefaultLevelAlpha = 0.05 // Smoothing factor applied per frame

	defaultLevelMin = -50.0 // dB
	defaultLevelMax = 0.0   // dB
)

// Levels are the power values mapped to the two ends of the color gradient.
type Levels struct {
	Min float64 // dB mapped to the first LUT entry
	Max float64 // dB mapped to the last LUT entry
}

// Range returns Max-Min, or 1 when the levels have collapsed.
func (l Levels) Range() float64 {
	if r := l.Max - l.Min; r != 0 {
		return r
	}
	return 1
}

// Normalize maps a power value onto [0, 1].
func (l Levels) Normalize(v float64) float64 {
	return max(0, min(1, (v-l.Min)/l.Range()))
}

// AutoLevel tracks exponentially smoothed per-frame power extremes, so the
// waterfall contrast follows the band without flickering on single frames.
type AutoLevel struct {
	alpha   float64
	current Levels
}

// NewAutoLevel creates a leveller. Alpha outside (0, 1] selects DefaultLevelAlpha.
func NewAutoLevel(alpha float64) *AutoLevel {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultLevelAlpha
	}
	return &AutoLevel{
		alpha:   alpha,
		current: Levels{Min: defaultLevelMin, Max: defaultLevelMax},
	}
}

// Update folds the extremes of one frame into the levels and returns them.
// An empty frame leaves the levels unchanged.
func (a *AutoLevel) Update(power []float64) Levels {
	if len(power) == 0 {
		return a.current
	}

	lo, hi := power[0], power[0]
	for _, v := range power[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	a.current.Min += a.alpha * (lo - a.current.Min)
	a.current.Max += a.alpha * (hi - a.current.Max)
	return a.current
}

// Current returns the smoothed levels.
func (a *AutoLevel) Current() Levels {
	return a.current
}

// Alpha returns the smoothing factor.
func (a *AutoLevel) Alpha() float64 {
	return a.alpha
}

// Reset restores the initial levels.
func (a *AutoLevel) Reset() {
	a.current = Levels{Min: defaultLevelMin, Max: defaultLevelMax}
}
