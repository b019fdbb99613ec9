package view

import (
	"sync/atomic"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// FrameStore holds the latest spectral frame. A new frame supersedes the old
// one as a whole; readers never observe a mix of two frames.
type FrameStore struct {
	current atomic.Pointer[spectrum.Frame]
}

// Update replaces the live frame.
func (s *FrameStore) Update(f *spectrum.Frame) {
	s.current.Store(f)
}

// Current returns the live frame, or nil before the first frame arrives.
func (s *FrameStore) Current() *spectrum.Frame {
	return s.current.Load()
}

// Clear drops the live frame.
func (s *FrameStore) Clear() {
	s.current.Store(nil)
}

// Visible returns the frequencies and power values of the live frame visible
// through v. Both slices share the frame's backing arrays.
func (s *FrameStore) Visible(v *Viewport) ([]float64, []float64) {
	f := s.Current()
	if f.Len() == 0 {
		return nil, nil
	}

	start, end := v.VisibleRange(f.Len())
	return f.Frequencies[start:end], f.Power[start:end]
}
