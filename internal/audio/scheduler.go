package audio

import (
	"errors"
	"io"
	"log/slog"
)

const (
	// SampleRate is the playback rate of the PCM stream in Hz.
	SampleRate = 48_000

	pcmScale = 32768.0
)

// ErrDeviceClosed is returned by a Device that has been torn down.
var ErrDeviceClosed = errors.New("audio device closed")

// Device is a playback device with its own clock. Play schedules mono
// samples to start at the given instant on that clock.
type Device interface {
	Now() float64
	Play(samples []float32, at float64) error
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.logger = logger.With(slog.String("component", "audio"))
	}
}

// WithSampleRate overrides the stream sample rate
func WithSampleRate(rate int) func(s *Scheduler) {
	return func(s *Scheduler) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// Scheduler turns PCM chunks arriving at network cadence into back-to-back
// playback on a Device. It keeps a single virtual playback clock, nextPlayTime,
// which never moves backwards and is only touched from Submit and Reset.
//
// A Scheduler is not safe for concurrent use; all calls are expected from the
// session's event loop.
type Scheduler struct {
	device       Device
	nextPlayTime float64
	rate         int
	logger       *slog.Logger
}

// NewScheduler creates a scheduler anchored at the device's current instant.
// A nil device yields a scheduler that drops every chunk.
func NewScheduler(device Device, options ...func(s *Scheduler)) *Scheduler {
	s := Scheduler{
		device: device,
		rate:   SampleRate,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	s.Reset()
	return &s
}

// Submit schedules a chunk right after the previously scheduled one, or now if
// playback has fallen behind the device clock. It returns the start instant and
// false when the chunk was dropped because the device is gone.
func (s *Scheduler) Submit(chunk []int16) (float64, bool) {
	if s.device == nil || len(chunk) == 0 {
		return 0, false
	}

	buf := make([]float32, len(chunk))
	for i, v := range chunk {
		buf[i] = float32(float64(v) / pcmScale)
	}

	start := max(s.nextPlayTime, s.device.Now())
	if err := s.device.Play(buf, start); err != nil {
		// the device may be torn down by a stop racing with an in-flight chunk
		s.logger.Debug("dropping audio chunk", slog.String("error", err.Error()))
		return 0, false
	}

	s.nextPlayTime = start + float64(len(chunk))/float64(s.rate)
	return start, true
}

// Reset discards scheduling state and re-anchors to the device clock.
func (s *Scheduler) Reset() {
	if s.device == nil {
		s.nextPlayTime = 0
		return
	}
	s.nextPlayTime = s.device.Now()
}

// Close releases the device, if it can be closed. Later chunks are dropped.
func (s *Scheduler) Close() error {
	if s.device == nil {
		return nil
	}

	var err error
	if c, ok := s.device.(io.Closer); ok {
		err = c.Close()
	}
	s.device = nil
	return err
}
