package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

const (
	infoBarHeight = 80
	infoSize      = 12.0
	infoMargin    = 6

	// infoLineHeight is 1.4 times the font size, in whole pixels.
	infoLineHeight = 17
)

var (
	infoBackground = color.RGBA{R: 0x0d, G: 0x11, B: 0x17, A: 0xff}
	infoColor      = color.RGBA{R: 0xc9, G: 0xd1, B: 0xd9, A: 0xff}
)

// annotate returns a copy of the waterfall with an information bar above it.
func annotate(waterfall *image.RGBA, session *spectrum.CaptureSession, h *History) (*image.RGBA, error) {
	ann, err := render.NewAnnotator()
	if err != nil {
		return nil, err
	}
	defer ann.Close()

	b := waterfall.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+infoBarHeight))
	draw.Draw(img, image.Rect(0, 0, b.Dx(), infoBarHeight), image.NewUniform(infoBackground), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, infoBarHeight, b.Dx(), infoBarHeight+b.Dy()), waterfall, b.Min, draw.Src)

	y := infoMargin + int(infoSize)
	for _, s := range infoLines(session, h, b.Dx(), b.Dy()) {
		if err = ann.DrawString(img, s, infoMargin, y, infoSize, render.AlignLeft, infoColor); err != nil {
			return nil, err
		}
		y += infoLineHeight
	}
	return img, nil
}

func infoLines(session *spectrum.CaptureSession, h *History, width, height int) []string {
	var lines []string
	if session != nil {
		lines = append(lines, fmt.Sprintf("Session %d: %s, %s", session.ID, session.Server, strings.ToUpper(session.Mode.String())))
	}

	bandwidth := h.FrequencyMax - h.FrequencyMin
	lines = append(lines,
		fmt.Sprintf("Band: %s to %s, peak %0.1f dB at %s",
			humanHz(h.FrequencyMin), humanHz(h.FrequencyMax), h.PeakPower, humanHz(h.PeakFrequency)),
		fmt.Sprintf("Frames: %s from %s to %s (%s)",
			humanize.Comma(int64(h.Frames)),
			h.TimestampStart.Local().Format(time.DateTime),
			h.TimestampEnd.Local().Format(time.DateTime),
			h.Duration().Round(time.Second)),
	)

	if width > 0 && height > 0 {
		perRow := h.Duration() / time.Duration(height)
		lines = append(lines, fmt.Sprintf("1 pixel = %s x %s", humanHz(bandwidth/float64(width)), perRow.Round(time.Millisecond)))
	}
	return lines
}
