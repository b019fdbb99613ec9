package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "capture.db"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testFrame(ts time.Time, center float64) *spectrum.TimedFrame {
	return &spectrum.TimedFrame{
		Timestamp: ts,
		Frame: &spectrum.Frame{
			Frequencies:     []float64{center - 0.1, center, center + 0.1},
			Power:           []float64{-80, -20.5, -79},
			CenterFrequency: center,
			PeakFrequency:   center,
			PeakPower:       -20.5,
		},
	}
}

func TestSqliteStore_Sessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSession(ctx, "ws://radio.local:8080/ws", spectrum.ModeWFM, map[string]any{"freq_mhz": 98.5})
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	second, err := s.CreateSession(ctx, "ws://radio.local:8080/ws", spectrum.ModeNFM, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	sess, err := s.Session(ctx, first)
	if err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if sess.Mode != spectrum.ModeWFM || sess.Server != "ws://radio.local:8080/ws" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.Config == nil || *sess.Config != `{"freq_mhz":98.5}` {
		t.Errorf("unexpected config: %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Error("expected a start time")
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("listing sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first || sessions[1].ID != second {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
	if sessions[1].Config != nil {
		t.Errorf("expected no config, got %q", *sessions[1].Config)
	}

	if _, err = s.Session(ctx, 42); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for a missing session, got %v", err)
	}
}

func TestSqliteStore_Frames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "ws://radio.local/ws", spectrum.ModeWFM, "raw")
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err = s.StoreFrame(ctx, id, testFrame(base.Add(time.Duration(i)*time.Second), 100+float64(i))); err != nil {
			t.Fatalf("storing frame %d: %v", i, err)
		}
	}

	// empty frames are skipped
	if err = s.StoreFrame(ctx, id, &spectrum.TimedFrame{Timestamp: base, Frame: &spectrum.Frame{}}); err != nil {
		t.Fatalf("storing empty frame: %v", err)
	}

	testCases := []struct {
		name    string
		opts    []ReaderOption
		centers []float64
	}{
		{"all", nil, []float64{100, 101, 102, 103, 104}},
		{"from", []ReaderOption{WithStartTime(base.Add(3 * time.Second))}, []float64{103, 104}},
		{"until", []ReaderOption{WithEndTime(base.Add(time.Second))}, []float64{100, 101}},
		{"range", []ReaderOption{WithTimeRange(base.Add(time.Second), base.Add(2*time.Second))}, []float64{101, 102}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := s.ReadFrames(ctx, id, tc.opts...)
			if err != nil {
				t.Fatalf("creating reader: %v", err)
			}
			defer r.Close()

			if r.Session().ID != id {
				t.Errorf("expected session %d, got %d", id, r.Session().ID)
			}

			var centers []float64
			for r.Next(ctx) {
				f := r.Current()
				if f.Frame.Len() != 3 || f.Frame.Power[1] != -20.5 {
					t.Errorf("unexpected frame: %+v", f.Frame)
				}
				centers = append(centers, f.Frame.CenterFrequency)
			}
			if err = r.Error(); err != nil {
				t.Fatalf("reading frames: %v", err)
			}

			if len(centers) != len(tc.centers) {
				t.Fatalf("expected centers %v, got %v", tc.centers, centers)
			}
			for i := range centers {
				if centers[i] != tc.centers[i] {
					t.Errorf("frame %d: expected center %v, got %v", i, tc.centers[i], centers[i])
				}
			}
		})
	}
}

func TestSqliteStore_ReadFramesErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "ws://radio.local/ws", spectrum.ModeAM, nil)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	if _, err = s.ReadFrames(ctx, id); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for a session without frames, got %v", err)
	}

	now := time.Now()
	if _, err = s.ReadFrames(ctx, id, WithTimeRange(now, now.Add(-time.Second))); err == nil {
		t.Error("expected an error for an inverted time range")
	}

	if _, err = s.ReadFrames(ctx, 0); err == nil {
		t.Error("expected an error for a missing session ID")
	}
}

func TestSqliteStore_CloseReportsIndexError(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateSession(context.Background(), "ws://radio.local/ws", spectrum.ModeAM, nil); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	// the index build at close runs on a dead connection
	if err := s.writeDB.Close(); err != nil {
		t.Fatal(err)
	}

	err := s.Close()
	if err == nil || !strings.Contains(err.Error(), "creating indexes") {
		t.Errorf("expected an index error from close, got %v", err)
	}
	if again := s.Close(); again != err {
		t.Errorf("expected close to return the same error, got %v", again)
	}
}

func TestEncodeFloats(t *testing.T) {
	values := []float64{-80.25, 0, 146.52}

	p := encodeFloats(values)
	if len(p) != 24 {
		t.Fatalf("expected 24 bytes, got %d", len(p))
	}

	got, err := decodeFloats(p, len(values))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("value %d: expected %v, got %v", i, values[i], got[i])
		}
	}

	if _, err = decodeFloats(p[:20], 3); err == nil {
		t.Error("expected an error for a truncated blob")
	}
}
