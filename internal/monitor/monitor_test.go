package monitor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roman-kulish/radio-monitor/internal/audio"
	"github.com/roman-kulish/radio-monitor/internal/codec"
	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// testWidth leaves a 1000 px plot right of the default 48 px axis margin.
const testWidth = 1048

func spectrumPayload(t *testing.T, center float64) []byte {
	t.Helper()

	freqs := make([]float64, 101)
	power := make([]float64, 101)
	for i := range freqs {
		freqs[i] = center - 0.5 + float64(i)*0.01
		power[i] = -80
	}
	power[50] = -20

	p, err := json.Marshal(map[string]any{
		"type":        "spectrum",
		"freqs":       freqs,
		"power":       power,
		"center_freq": center,
		"peak_freq":   center,
		"peak_power":  -20.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func digitalPayload(t *testing.T, calls ...string) []byte {
	t.Helper()

	ev := spectrum.DigitalEvent{FreqMHz: 154.295, Mode: "dmr"}
	for _, c := range calls {
		ev.Calls = append(ev.Calls, spectrum.DigitalCall{Time: "12:00:00", Message: c})
	}

	p, err := json.Marshal(struct {
		Type string `json:"type"`
		spectrum.DigitalEvent
	}{"digital", ev})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestMonitor(t *testing.T, options ...func(m *Monitor)) *Monitor {
	t.Helper()

	lut, err := render.ThemeLUT(render.ClassicTheme)
	if err != nil {
		t.Fatalf("creating lut: %v", err)
	}

	options = append([]func(m *Monitor){WithSize(testWidth, 200, 50)}, options...)
	m := New(lut, options...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type chunkRecorder struct {
	chunks [][]int16
	closed bool
}

func (r *chunkRecorder) Write(chunk []int16) error {
	if r.closed {
		return audio.ErrDeviceClosed
	}
	r.chunks = append(r.chunks, chunk)
	return nil
}

func (r *chunkRecorder) Close() error {
	r.closed = true
	return nil
}

func TestMonitor_Spectrum(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var captured []*spectrum.TimedFrame
	m := newTestMonitor(t,
		WithClock(func() time.Time { return at }),
		WithFrameHandler(func(f *spectrum.TimedFrame) { captured = append(captured, f) }),
	)

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Frame().Len() != 101 {
		t.Fatalf("expected a live frame with 101 bins, got %d", m.Frame().Len())
	}
	if len(captured) != 1 || !captured[0].Timestamp.Equal(at) {
		t.Errorf("expected one captured frame at %s, got %+v", at, captured)
	}

	// the spike column of the newest waterfall row is painted
	if c := m.Waterfall().Image().RGBAAt(testWidth/2, 0); c.R == 0 && c.G == 0 && c.B == 0 {
		t.Error("expected the waterfall to paint the spike")
	}

	scene := m.Scene()
	if len(scene.Frequencies) != 101 || scene.CenterMHz != 100 || scene.TunedMHz != 100 {
		t.Errorf("unexpected scene: center %v tuned %v bins %d", scene.CenterMHz, scene.TunedMHz, len(scene.Frequencies))
	}
	if scene.Zoom != 1 {
		t.Errorf("expected zoom 1, got %v", scene.Zoom)
	}
}

func TestMonitor_DropsMalformed(t *testing.T) {
	m := newTestMonitor(t)

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatal(err)
	}
	live := m.Frame()

	testCases := []struct {
		name        string
		messageType int
		payload     []byte
	}{
		{"bad json", websocket.TextMessage, []byte(`{"type":`)},
		{"unknown type", websocket.TextMessage, []byte(`{"type":"status"}`)},
		{"length mismatch", websocket.TextMessage, []byte(`{"type":"spectrum","freqs":[1,2],"power":[1]}`)},
		{"odd audio", websocket.BinaryMessage, []byte{1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.HandleMessage(tc.messageType, tc.payload)
			if !errors.Is(err, codec.ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
			if m.Frame() != live {
				t.Error("expected the live frame to survive a malformed message")
			}
		})
	}

	if s := m.Stats(); s.Dropped != len(testCases) || s.Frames != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestMonitor_Audio(t *testing.T) {
	timeline := audio.NewTimeline(audio.SampleRate)
	rec := &chunkRecorder{}
	m := newTestMonitor(t, WithScheduler(audio.NewScheduler(timeline)), WithRecorder(rec))

	chunk := codec.EncodePCM(make([]int16, 960))
	for i := 0; i < 3; i++ {
		if err := m.HandleMessage(websocket.BinaryMessage, chunk); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := timeline.Pending(); n != 2880 {
		t.Errorf("expected 2880 samples queued back to back, got %d", n)
	}
	if len(rec.chunks) != 3 {
		t.Errorf("expected 3 recorded chunks, got %d", len(rec.chunks))
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !rec.closed {
		t.Error("expected the recorder to be closed")
	}

	// chunks racing with a stop are dropped quietly
	if err := m.HandleMessage(websocket.BinaryMessage, chunk); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}
	if s := m.Stats(); s.AudioChunks != 4 || s.AudioDropped != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestMonitor_ClickTunes(t *testing.T) {
	var tuned []float64
	m := newTestMonitor(t, WithTuneHandler(func(mhz float64) { tuned = append(tuned, mhz) }))

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatal(err)
	}

	m.Press(548)
	m.Move(550)
	mhz, ok := m.Release(550)
	if !ok {
		t.Fatal("expected a click within the drag threshold to tune")
	}
	if math.Abs(mhz-100.002) > 1e-9 {
		t.Errorf("expected 100.002 MHz, got %v", mhz)
	}
	if len(tuned) != 1 || tuned[0] != mhz {
		t.Errorf("expected one tune request, got %v", tuned)
	}
	if got, _ := m.Tuned(); got != mhz {
		t.Errorf("expected tuned frequency %v, got %v", mhz, got)
	}
	if m.Viewport().Pan() != 0.5 {
		t.Errorf("expected an unzoomed view to stay centred, got pan %v", m.Viewport().Pan())
	}
}

func TestMonitor_DragPans(t *testing.T) {
	var tuned []float64
	m := newTestMonitor(t, WithTuneHandler(func(mhz float64) { tuned = append(tuned, mhz) }))

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatal(err)
	}

	m.Wheel(-100, 548)
	m.Wheel(-100, 548)
	zoom := m.Viewport().Zoom()
	if math.Abs(zoom-1.44) > 1e-9 {
		t.Fatalf("expected zoom 1.44, got %v", zoom)
	}

	m.Press(548)
	m.Move(600)
	if _, ok := m.Release(600); ok {
		t.Error("expected a drag not to tune")
	}
	if len(tuned) != 0 {
		t.Errorf("expected no tune requests, got %v", tuned)
	}
	if m.Viewport().Pan() >= 0.5 {
		t.Errorf("expected dragging right to reveal lower frequencies, got pan %v", m.Viewport().Pan())
	}

	if got := len(m.Scene().Frequencies); got >= 101 {
		t.Errorf("expected a zoomed scene to show fewer bins, got %d", got)
	}

	m.Reset()
	if m.Viewport().Zoom() != 1 || m.Viewport().Pan() != 0.5 {
		t.Errorf("expected reset view, got zoom %v pan %v", m.Viewport().Zoom(), m.Viewport().Pan())
	}
}

func TestMonitor_WheelAtPointer(t *testing.T) {
	testCases := []struct {
		name    string
		x       float64
		wantPan float64
	}{
		{"plot centre", 548, 0.5},
		{"left of centre", 498, 0.45},
		{"over the margin", 10, 1 / 1.2 / 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMonitor(t)
			if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
				t.Fatal(err)
			}

			m.Wheel(-100, tc.x)
			if math.Abs(m.Viewport().Zoom()-1.2) > 1e-9 {
				t.Fatalf("expected zoom 1.2, got %v", m.Viewport().Zoom())
			}
			if got := m.Viewport().Pan(); math.Abs(got-tc.wantPan) > 1e-9 {
				t.Errorf("expected pan %v, got %v", tc.wantPan, got)
			}
		})
	}
}

func TestMonitor_IgnoredGestures(t *testing.T) {
	var tuned []float64
	m := newTestMonitor(t, WithTuneHandler(func(mhz float64) { tuned = append(tuned, mhz) }))

	// no frame yet: a click has no frequency to tune to
	m.Press(548)
	if _, ok := m.Release(548); ok {
		t.Error("expected no tune without a frame")
	}

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatal(err)
	}

	// presses over the axis margin are ignored
	m.Press(10)
	if _, ok := m.Release(10); ok {
		t.Error("expected a press over the margin to be ignored")
	}

	// leaving the canvas abandons the gesture
	m.Press(548)
	m.Leave()
	if _, ok := m.Release(548); ok {
		t.Error("expected an abandoned gesture not to tune")
	}

	if len(tuned) != 0 {
		t.Errorf("expected no tune requests, got %v", tuned)
	}
}

func TestMonitor_Digital(t *testing.T) {
	var added [][]spectrum.DigitalCall
	m := newTestMonitor(t,
		WithCallLimit(3),
		WithDigitalHandler(func(_ *spectrum.DigitalEvent, calls []spectrum.DigitalCall) {
			added = append(added, calls)
		}),
	)

	events := [][]string{
		{"a"},
		{"a", "b", "c"},
		{"a", "b", "c"},
		{"b", "c", "d", "e"},
	}
	for _, calls := range events {
		if err := m.HandleMessage(websocket.TextMessage, digitalPayload(t, calls...)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	wantAdded := []int{1, 2, 0, 2}
	for i, n := range wantAdded {
		if len(added[i]) != n {
			t.Errorf("event %d: expected %d new calls, got %d", i, n, len(added[i]))
		}
	}

	calls := m.Calls()
	if len(calls) != 3 || calls[0].Message != "c" || calls[2].Message != "e" {
		t.Errorf("expected the last three calls, got %+v", calls)
	}
	if m.Stats().Calls != 5 {
		t.Errorf("expected 5 calls counted, got %d", m.Stats().Calls)
	}

	if m.Digital() == nil || m.Digital().FreqMHz != 154.295 {
		t.Fatalf("expected a digital overlay, got %+v", m.Digital())
	}

	if err := m.HandleMessage(websocket.TextMessage, spectrumPayload(t, 100)); err != nil {
		t.Fatal(err)
	}
	if m.Digital() != nil {
		t.Error("expected a spectrum frame to replace the digital overlay")
	}
}

func TestMonitor_NudgeDigit(t *testing.T) {
	var tuned []float64
	m := newTestMonitor(t,
		WithTuning(146.52, spectrum.ModeNFM),
		WithTuneHandler(func(mhz float64) { tuned = append(tuned, mhz) }),
	)

	mhz, err := m.NudgeDigit(3, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(mhz-146.42) > 1e-9 {
		t.Errorf("expected 146.42, got %v", mhz)
	}
	if len(tuned) != 1 {
		t.Errorf("expected one tune request, got %v", tuned)
	}

	if _, err = m.NudgeDigit(12, 1); err == nil {
		t.Error("expected an error for a digit out of range")
	}

	if scene := m.Scene(); scene.Mode != spectrum.ModeNFM || scene.TunedMHz != mhz {
		t.Errorf("unexpected scene tuning: %v %v", scene.Mode, scene.TunedMHz)
	}
}

func TestMonitor_Resize(t *testing.T) {
	m := newTestMonitor(t)

	m.Resize(640, 180, 120)
	if w, sh, wh := m.Size(); w != 640 || sh != 180 || wh != 120 {
		t.Errorf("unexpected size %dx%d/%d", w, sh, wh)
	}
	if b := m.Waterfall().Image().Bounds(); b.Dx() != 640 || b.Dy() != 120 {
		t.Errorf("expected a 640x120 waterfall, got %v", b)
	}
}
