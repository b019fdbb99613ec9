package app

import (
	"math"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// History keeps the power rows of the latest frames of a session together
// with the extent of everything it has seen.
type History struct {
	maxRows int
	rows    [][]float64

	Frames         int
	Skipped        int
	TimestampStart time.Time
	TimestampEnd   time.Time
	FrequencyMin   float64
	FrequencyMax   float64
	PeakPower      float64
	PeakFrequency  float64
}

func NewHistory(maxRows int) *History {
	return &History{
		maxRows:      maxRows,
		FrequencyMin: math.Inf(1),
		FrequencyMax: math.Inf(-1),
		PeakPower:    math.Inf(-1),
	}
}

// Add appends a frame. Empty frames are counted as skipped; once maxRows
// rows are held the oldest one is dropped.
func (h *History) Add(f *spectrum.TimedFrame) {
	if f == nil || f.Frame.Len() == 0 {
		h.Skipped++
		return
	}

	if h.Frames == 0 {
		h.TimestampStart = f.Timestamp
	}
	h.TimestampEnd = f.Timestamp
	h.Frames++

	start, end := f.Frame.Span()
	h.FrequencyMin = math.Min(h.FrequencyMin, start)
	h.FrequencyMax = math.Max(h.FrequencyMax, end)
	if f.Frame.PeakPower > h.PeakPower {
		h.PeakPower = f.Frame.PeakPower
		h.PeakFrequency = f.Frame.PeakFrequency
	}

	if len(h.rows) == h.maxRows {
		copy(h.rows, h.rows[1:])
		h.rows = h.rows[:len(h.rows)-1]
	}
	h.rows = append(h.rows, f.Frame.Power)
}

// Rows returns the kept power rows, oldest first.
func (h *History) Rows() [][]float64 {
	return h.rows
}

func (h *History) Empty() bool {
	return h.Frames == 0
}

func (h *History) Duration() time.Duration {
	return h.TimestampEnd.Sub(h.TimestampStart)
}
