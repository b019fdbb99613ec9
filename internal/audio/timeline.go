package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

const bytesPerFrame = 4 // mono float32

type segment struct {
	start   int64 // first frame index on the timeline
	samples []float32
}

// Timeline is a Device backed by a pull-based audio sink. The sink reads
// float32 little-endian mono frames through Read; the device clock is the
// number of frames handed out so far. Scheduled segments are emitted at their
// start frame, gaps between them are filled with silence.
type Timeline struct {
	rate int

	mu       sync.Mutex
	pos      int64 // frames emitted
	segments []segment
	closed   bool
}

// NewTimeline creates an empty timeline at the given sample rate.
func NewTimeline(rate int) *Timeline {
	if rate <= 0 {
		rate = SampleRate
	}
	return &Timeline{rate: rate}
}

// Now returns the device clock in seconds.
func (t *Timeline) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.pos) / float64(t.rate)
}

// Play queues samples to start at the given instant. Samples scheduled in the
// past are trimmed so the timeline never rewinds.
func (t *Timeline) Play(samples []float32, at float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrDeviceClosed
	}

	start := int64(math.Round(at * float64(t.rate)))
	if start < t.pos {
		skip := t.pos - start
		if skip >= int64(len(samples)) {
			return nil
		}
		samples = samples[skip:]
		start = t.pos
	}

	t.segments = append(t.segments, segment{start: start, samples: samples})
	return nil
}

// Pending returns the number of frames queued but not yet emitted.
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int64
	for _, s := range t.segments {
		end := s.start + int64(len(s.samples))
		n += end - max(s.start, t.pos)
	}
	return int(n)
}

// Read fills p with whole frames. It never blocks: when nothing is scheduled
// the sink receives silence and the clock keeps running.
func (t *Timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := len(p) / bytesPerFrame
	for i := 0; i < frames; i++ {
		var v float32
		frame := t.pos + int64(i)

		for len(t.segments) > 0 {
			s := t.segments[0]
			end := s.start + int64(len(s.samples))
			if frame >= end {
				t.segments = t.segments[1:]
				continue
			}
			if frame >= s.start {
				v = s.samples[frame-s.start]
			}
			break
		}

		binary.LittleEndian.PutUint32(p[i*bytesPerFrame:], math.Float32bits(v))
	}

	t.pos += int64(frames)
	return frames * bytesPerFrame, nil
}

// Close drops queued audio. Play fails afterwards; Read keeps returning silence.
func (t *Timeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.segments = nil
	return nil
}
