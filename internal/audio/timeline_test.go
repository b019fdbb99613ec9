package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func readFrames(t *testing.T, tl *Timeline, n int) []float32 {
	t.Helper()

	p := make([]byte, n*bytesPerFrame)
	got, err := tl.Read(p)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got != len(p) {
		t.Fatalf("expected %d bytes, got %d", len(p), got)
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*bytesPerFrame:]))
	}
	return out
}

func TestTimeline_SilenceAndClock(t *testing.T) {
	tl := NewTimeline(1000)

	frames := readFrames(t, tl, 10)
	for i, v := range frames {
		if v != 0 {
			t.Errorf("frame %d: expected silence, got %f", i, v)
		}
	}
	if tl.Now() != 0.01 {
		t.Errorf("expected clock at 0.01s, got %f", tl.Now())
	}
}

func TestTimeline_ScheduledPlayback(t *testing.T) {
	tl := NewTimeline(1000)

	// 2 frames of silence, then two back-to-back segments
	if err := tl.Play([]float32{0.1, 0.2}, 0.002); err != nil {
		t.Fatal(err)
	}
	if err := tl.Play([]float32{0.3}, 0.004); err != nil {
		t.Fatal(err)
	}
	if tl.Pending() != 3 {
		t.Errorf("expected 3 pending frames, got %d", tl.Pending())
	}

	got := readFrames(t, tl, 6)
	want := []float32{0, 0, 0.1, 0.2, 0.3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: expected %f, got %f", i, want[i], got[i])
		}
	}
	if tl.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", tl.Pending())
	}
}

func TestTimeline_PastStartIsTrimmed(t *testing.T) {
	tl := NewTimeline(1000)
	readFrames(t, tl, 5)

	if err := tl.Play([]float32{1, 2, 3, 4}, 0.003); err != nil {
		t.Fatal(err)
	}
	got := readFrames(t, tl, 2)
	if got[0] != 3 || got[1] != 4 {
		t.Errorf("expected trimmed samples [3 4], got %v", got)
	}
}

func TestTimeline_WithScheduler(t *testing.T) {
	tl := NewTimeline(SampleRate)
	s := NewScheduler(tl)

	for i := 0; i < 3; i++ {
		s.Submit(make([]int16, 960))
	}
	if tl.Pending() != 2880 {
		t.Errorf("expected 2880 queued frames with no gaps, got %d", tl.Pending())
	}
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	r, err := NewRecorder(path, SampleRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Write([]int16{100, -100, 32767}); err != nil {
		t.Fatal(err)
	}
	if err := r.Write([]int16{-32768}); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 4 {
		t.Errorf("expected 4 recorded frames, got %d", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Write([]int16{1}); err == nil {
		t.Error("expected write after close to fail")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding wav: %v", err)
	}
	if dec.SampleRate != SampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("unexpected wav format: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	want := []int{100, -100, 32767, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}
