package view

import (
	"math"
	"testing"
)

func TestGesture_Click(t *testing.T) {
	v := NewViewport()
	v.zoom = 2
	g := NewGesture(0)

	g.Press(400, v)
	g.Move(402, 800, v)
	g.Move(397, 800, v)

	if !g.Release() {
		t.Error("expected a small movement to be a click")
	}
	if g.Active() {
		t.Error("expected gesture to end on release")
	}
}

func TestGesture_Drag(t *testing.T) {
	v := NewViewport()
	v.zoom = 4
	v.SetPan(0.5)
	g := NewGesture(DefaultDragThreshold)

	g.Press(400, v)
	g.Move(480, 800, v)
	if want := 0.5 - 0.1/4; math.Abs(v.Pan()-want) > 1e-12 {
		t.Errorf("expected pan %.4f, got %.4f", want, v.Pan())
	}

	// moving back to the origin restores the pan at press time
	g.Move(400, 800, v)
	if v.Pan() != 0.5 {
		t.Errorf("expected pan 0.5, got %.6f", v.Pan())
	}

	if g.Release() {
		t.Error("expected a drag not to be a click")
	}
}

func TestGesture_Cancel(t *testing.T) {
	v := NewViewport()
	g := NewGesture(0)

	g.Press(100, v)
	g.Cancel()
	if g.Release() {
		t.Error("expected cancelled gesture not to produce a click")
	}

	g.Move(200, 800, v)
	if v.Pan() != 0.5 {
		t.Error("expected moves without a press to be ignored")
	}
}

func TestNudgeDigit(t *testing.T) {
	testCases := []struct {
		name  string
		mhz   float64
		digit int
		dir   int
		want  float64
	}{
		{"1 MHz up", 100, 2, 1, 101},
		{"100 kHz down", 100, 3, -1, 99.9},
		{"clamped low", 100, 0, -1, MinTuneMHz},
		{"clamped high", 1700, 0, 1, MaxTuneMHz},
		{"single Hz", 146.52, 8, 1, 146.520001},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NudgeDigit(tc.mhz, tc.digit, tc.dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %.6f, got %.6f", tc.want, got)
			}
		})
	}

	if _, err := NudgeDigit(100, 9, 1); err == nil {
		t.Error("expected error for digit out of range")
	}
}

func TestFormatDigits(t *testing.T) {
	if got := FormatDigits(98.5); got != "098500000" {
		t.Errorf("expected 098500000, got %s", got)
	}
	if got := FormatDigits(1296.25); got != "296250000" {
		t.Errorf("expected the lowest nine digits, got %s", got)
	}
}
