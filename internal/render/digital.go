package render

import (
	"fmt"
	"image"
	"strings"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

var (
	digitalTitleColor = hexColor("#d29922", 1)
	digitalModeColor  = hexColor("#8b949e", 1)
)

// DigitalTitle is the headline shown while the digital monitor runs.
func DigitalTitle(ev *spectrum.DigitalEvent) string {
	return fmt.Sprintf("Monitoring %.3f MHz", ev.FreqMHz)
}

// DigitalSubtitle names the decoder mode.
func DigitalSubtitle(ev *spectrum.DigitalEvent) string {
	return "Mode: " + strings.ToUpper(ev.Mode)
}

// RenderDigital replaces the spectrum panel with the digital monitor banner.
func (r *SpectrumRenderer) RenderDigital(ev *spectrum.DigitalEvent, width, height int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, max(0, width), max(0, height)))
	fill(img, backgroundColor)

	cx, cy := width/2, height/2
	if err := r.annotator.DrawString(img, DigitalTitle(ev), cx, cy-10, 18, AlignCenter, digitalTitleColor); err != nil {
		return nil, fmt.Errorf("drawing digital title: %w", err)
	}
	if err := r.annotator.DrawString(img, DigitalSubtitle(ev), cx, cy+15, 13, AlignCenter, digitalModeColor); err != nil {
		return nil, fmt.Errorf("drawing digital mode: %w", err)
	}
	return img, nil
}
