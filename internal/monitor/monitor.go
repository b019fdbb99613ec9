package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/audio"
	"github.com/roman-kulish/radio-monitor/internal/codec"
	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
	"github.com/roman-kulish/radio-monitor/internal/view"
)

const (
	DefaultWidth           = 1024
	DefaultSpectrumHeight  = 240
	DefaultWaterfallHeight = 256
	DefaultCallLimit       = 50
)

// ChunkWriter receives every decoded audio chunk, e.g. a WAV recorder.
type ChunkWriter interface {
	Write(chunk []int16) error
}

// TuneHandler is called with the frequency the user asked to tune to.
type TuneHandler func(mhz float64)

// FrameHandler is called with every accepted spectral frame.
type FrameHandler func(frame *spectrum.TimedFrame)

// DigitalHandler is called with every digital event and the calls it added.
type DigitalHandler func(ev *spectrum.DigitalEvent, added []spectrum.DigitalCall)

// Stats counts what a monitor has processed so far.
type Stats struct {
	Frames       int
	Dropped      int // malformed or unsupported messages
	AudioChunks  int
	AudioDropped int
	Calls        int
}

// WithLogger sets the logger for the monitor
func WithLogger(logger *slog.Logger) func(m *Monitor) {
	return func(m *Monitor) {
		m.logger = logger.With(slog.String("component", "monitor"))
	}
}

// WithViewport shares a zoom/pan state with the monitor
func WithViewport(v *view.Viewport) func(m *Monitor) {
	return func(m *Monitor) {
		m.viewport = v
	}
}

// WithScheduler routes audio chunks to s
func WithScheduler(s *audio.Scheduler) func(m *Monitor) {
	return func(m *Monitor) {
		m.scheduler = s
	}
}

// WithRecorder copies audio chunks to w
func WithRecorder(w ChunkWriter) func(m *Monitor) {
	return func(m *Monitor) {
		m.recorder = w
	}
}

// WithTuneHandler sets the callback for tune requests
func WithTuneHandler(h TuneHandler) func(m *Monitor) {
	return func(m *Monitor) {
		m.onTune = h
	}
}

// WithFrameHandler sets the callback for accepted frames
func WithFrameHandler(h FrameHandler) func(m *Monitor) {
	return func(m *Monitor) {
		m.onFrame = h
	}
}

// WithDigitalHandler sets the callback for digital events
func WithDigitalHandler(h DigitalHandler) func(m *Monitor) {
	return func(m *Monitor) {
		m.onDigital = h
	}
}

// WithBookmarks sets the bookmarks drawn on the spectrum
func WithBookmarks(b []spectrum.Bookmark) func(m *Monitor) {
	return func(m *Monitor) {
		m.bookmarks = b
	}
}

// WithBandwidths overrides the filter width per mode
func WithBandwidths(b spectrum.Bandwidths) func(m *Monitor) {
	return func(m *Monitor) {
		m.bandwidths = b
	}
}

// WithTuning sets the initial tuned frequency and mode
func WithTuning(mhz float64, mode spectrum.Mode) func(m *Monitor) {
	return func(m *Monitor) {
		m.tunedMHz = mhz
		m.mode = mode
	}
}

// WithSize sets the canvas width and the spectrum and waterfall heights
func WithSize(width, spectrumHeight, waterfallHeight int) func(m *Monitor) {
	return func(m *Monitor) {
		m.width = width
		m.spectrumHeight = spectrumHeight
		m.waterfallHeight = waterfallHeight
	}
}

// WithLayout sets the spectrum plot margins
func WithLayout(l render.Layout) func(m *Monitor) {
	return func(m *Monitor) {
		m.layout = l
	}
}

// WithDragThreshold sets how far a press may travel and still count as a click
func WithDragThreshold(px float64) func(m *Monitor) {
	return func(m *Monitor) {
		m.gesture = view.NewGesture(px)
	}
}

// WithLevelAlpha sets the waterfall auto-level smoothing factor
func WithLevelAlpha(alpha float64) func(m *Monitor) {
	return func(m *Monitor) {
		m.levelAlpha = alpha
	}
}

// WithCallLimit sets how many digital calls are kept
func WithCallLimit(n int) func(m *Monitor) {
	return func(m *Monitor) {
		if n > 0 {
			m.callLimit = n
		}
	}
}

// WithClock replaces time.Now for frame timestamps
func WithClock(now func() time.Time) func(m *Monitor) {
	return func(m *Monitor) {
		m.now = now
	}
}

// Monitor is the state of one streaming session: the live frame, the view
// over it, the waterfall history, the digital overlay and audio playback.
//
// A Monitor is not safe for concurrent use. All messages and pointer events
// are expected from a single event loop.
type Monitor struct {
	store     view.FrameStore
	viewport  *view.Viewport
	gesture   *view.Gesture
	waterfall *render.Waterfall
	scheduler *audio.Scheduler
	recorder  ChunkWriter

	layout          render.Layout
	width           int
	spectrumHeight  int
	waterfallHeight int
	levelAlpha      float64

	tunedMHz   float64
	mode       spectrum.Mode
	bandwidths spectrum.Bandwidths
	bookmarks  []spectrum.Bookmark

	digital   *spectrum.DigitalEvent
	calls     []spectrum.DigitalCall
	callLimit int

	stats Stats

	onTune    TuneHandler
	onFrame   FrameHandler
	onDigital DigitalHandler
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a monitor painting its waterfall with lut.
func New(lut *render.ColorLUT, options ...func(m *Monitor)) *Monitor {
	m := Monitor{
		gesture:         view.NewGesture(view.DefaultDragThreshold),
		layout:          render.DefaultLayout,
		width:           DefaultWidth,
		spectrumHeight:  DefaultSpectrumHeight,
		waterfallHeight: DefaultWaterfallHeight,
		levelAlpha:      render.DefaultLevelAlpha,
		mode:            spectrum.ModeWFM,
		bandwidths:      spectrum.DefaultBandwidths(),
		callLimit:       DefaultCallLimit,
		onTune:          func(float64) {},
		onFrame:         func(*spectrum.TimedFrame) {},
		onDigital:       func(*spectrum.DigitalEvent, []spectrum.DigitalCall) {},
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	if m.viewport == nil {
		m.viewport = view.NewViewport()
	}
	if m.scheduler == nil {
		m.scheduler = audio.NewScheduler(nil)
	}
	m.waterfall = render.NewWaterfall(m.width, m.waterfallHeight, lut, render.WithLevelAlpha(m.levelAlpha))

	return &m
}

// HandleMessage decodes one transport message and applies it. Messages that
// cannot be decoded are dropped and the error is returned for the caller's
// information only; the monitor stays usable.
func (m *Monitor) HandleMessage(messageType int, payload []byte) error {
	msg, err := codec.Decode(messageType, payload)
	if err != nil {
		m.stats.Dropped++
		m.logger.Debug("dropping message", slog.Int("type", messageType), slog.String("error", err.Error()))
		return err
	}

	switch msg.Kind {
	case codec.KindSpectrum:
		m.handleSpectrum(msg.Spectrum)
	case codec.KindDigital:
		m.handleDigital(msg.Digital)
	case codec.KindAudio:
		m.handleAudio(msg.Audio)
	}
	return nil
}

func (m *Monitor) handleSpectrum(f *spectrum.Frame) {
	m.store.Update(f)
	m.digital = nil
	m.stats.Frames++

	_, power := m.store.Visible(m.viewport)
	m.waterfall.Push(power)

	m.onFrame(&spectrum.TimedFrame{Timestamp: m.now().UTC(), Frame: f})
}

func (m *Monitor) handleDigital(ev *spectrum.DigitalEvent) {
	m.digital = ev

	added := newCalls(m.calls, ev.Calls)
	m.calls = append(m.calls, added...)
	if len(m.calls) > m.callLimit {
		m.calls = append([]spectrum.DigitalCall(nil), m.calls[len(m.calls)-m.callLimit:]...)
	}
	m.stats.Calls += len(added)

	m.onDigital(ev, added)
}

// newCalls returns the calls of history that follow the newest known call.
// Events carry the decoder's recent history, oldest first, so the same call
// is reported again by every event until it ages out.
func newCalls(known, history []spectrum.DigitalCall) []spectrum.DigitalCall {
	if len(known) == 0 {
		return history
	}

	last := known[len(known)-1]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] == last {
			return history[i+1:]
		}
	}
	return history
}

func (m *Monitor) handleAudio(chunk []int16) {
	m.stats.AudioChunks++

	if _, ok := m.scheduler.Submit(chunk); !ok {
		m.stats.AudioDropped++
	}

	if m.recorder != nil {
		if err := m.recorder.Write(chunk); err != nil {
			m.logger.Debug("recording audio chunk", slog.String("error", err.Error()))
		}
	}
}

// Frame returns the live frame, or nil before the first one.
func (m *Monitor) Frame() *spectrum.Frame {
	return m.store.Current()
}

// Digital returns the current digital event, or nil when the spectrum is shown.
func (m *Monitor) Digital() *spectrum.DigitalEvent {
	return m.digital
}

// Calls returns the most recent digital calls, oldest first.
func (m *Monitor) Calls() []spectrum.DigitalCall {
	return m.calls
}

func (m *Monitor) Stats() Stats {
	return m.stats
}

func (m *Monitor) Viewport() *view.Viewport {
	return m.viewport
}

func (m *Monitor) Waterfall() *render.Waterfall {
	return m.waterfall
}

// Size returns the canvas width and the spectrum and waterfall heights.
func (m *Monitor) Size() (width, spectrumHeight, waterfallHeight int) {
	return m.width, m.spectrumHeight, m.waterfallHeight
}

// Tuned returns the tuned frequency and mode.
func (m *Monitor) Tuned() (float64, spectrum.Mode) {
	return m.tunedMHz, m.mode
}

// SetTuning records a tuning change made outside the monitor, e.g. by the
// control API. It does not emit a tune request.
func (m *Monitor) SetTuning(mhz float64, mode spectrum.Mode) {
	m.tunedMHz = mhz
	m.mode = mode
}

// Scene returns what the spectrum renderer needs to draw the live frame.
func (m *Monitor) Scene() render.Scene {
	freqs, power := m.store.Visible(m.viewport)

	scene := render.Scene{
		Frequencies: freqs,
		Power:       power,
		TunedMHz:    m.tunedMHz,
		Mode:        m.mode,
		Bandwidths:  m.bandwidths,
		Bookmarks:   m.bookmarks,
		Zoom:        m.viewport.Zoom(),
	}
	if f := m.store.Current(); f != nil {
		scene.CenterMHz = f.CenterFrequency
		if scene.TunedMHz == 0 {
			scene.TunedMHz = f.CenterFrequency
		}
	}
	return scene
}

func (m *Monitor) plotLeft() float64 {
	return float64(m.layout.Left)
}

func (m *Monitor) plotWidth() float64 {
	return float64(m.width) - m.plotLeft()
}

// Wheel zooms around the pointer at x. Without a frame the zoom is centred.
func (m *Monitor) Wheel(deltaY, x float64) {
	frac := 0.5
	if m.store.Current().Len() > 0 && m.plotWidth() > 0 {
		frac = math.Max(0, math.Min(1, (x-m.plotLeft())/m.plotWidth()))
	}
	m.viewport.ApplyWheel(deltaY, frac)
}

// Press starts a drag or click at x. Presses over the axis margin are ignored.
func (m *Monitor) Press(x float64) {
	if x < m.plotLeft() {
		return
	}
	m.gesture.Press(x, m.viewport)
}

// Move pans the view while a press is in progress.
func (m *Monitor) Move(x float64) {
	if m.store.Current().Len() == 0 {
		return
	}
	m.gesture.Move(x, m.plotWidth(), m.viewport)
}

// Release ends the gesture at x. A release that did not drag tunes to the
// frequency under the pointer, which is returned.
func (m *Monitor) Release(x float64) (float64, bool) {
	if !m.gesture.Release() {
		return 0, false
	}

	freqs, _ := m.store.Visible(m.viewport)
	mhz, ok := view.PixelToFreq(x, m.plotLeft(), float64(m.width), freqs)
	if !ok {
		return 0, false
	}

	m.tune(mhz)
	return mhz, true
}

// Leave abandons a gesture when the pointer leaves the canvas.
func (m *Monitor) Leave() {
	m.gesture.Cancel()
}

// NudgeDigit steps one digit of the tuned frequency and emits a tune request.
func (m *Monitor) NudgeDigit(digit, dir int) (float64, error) {
	mhz, err := view.NudgeDigit(m.tunedMHz, digit, dir)
	if err != nil {
		return 0, fmt.Errorf("nudging digit: %w", err)
	}
	m.tune(mhz)
	return mhz, nil
}

func (m *Monitor) tune(mhz float64) {
	m.tunedMHz = mhz
	m.logger.Debug("tune request", slog.Float64("mhz", mhz))
	m.onTune(mhz)
}

// Resize changes the canvas size. The waterfall history is discarded.
func (m *Monitor) Resize(width, spectrumHeight, waterfallHeight int) {
	m.width = width
	m.spectrumHeight = spectrumHeight
	m.waterfallHeight = waterfallHeight
	m.waterfall.Resize(width, waterfallHeight)
}

// Reset returns to the full span and clears the waterfall history.
func (m *Monitor) Reset() {
	m.viewport.Reset()
	m.gesture.Cancel()
	m.waterfall.Reset()
}

// Close releases the audio output and drops the live frame. Later audio
// chunks are counted as dropped.
func (m *Monitor) Close() error {
	var errs []error
	if err := m.scheduler.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audio output: %w", err))
	}
	if c, ok := m.recorder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing recorder: %w", err))
		}
	}
	m.store.Clear()
	m.digital = nil
	return errors.Join(errs...)
}
