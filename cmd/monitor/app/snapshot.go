package app

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

const (
	spectrumFile  = "spectrum.png"
	waterfallFile = "waterfall.png"
)

// snapshot logs the power meter and, when a snapshot directory is set,
// writes the current spectrum and waterfall images.
func (r *runner) snapshot() {
	stats := r.monitor.Stats()
	attrs := []any{
		slog.String("frames", humanize.Comma(int64(stats.Frames))),
		slog.String("audioChunks", humanize.Comma(int64(stats.AudioChunks))),
		slog.Int("audioDropped", stats.AudioDropped),
	}
	if f := r.monitor.Frame(); f != nil {
		attrs = append(attrs,
			slog.String("peak", humanize.SIWithDigits(f.PeakFrequency*1e6, 6, "Hz")),
			slog.String("power", fmt.Sprintf("%.1f dB", f.PeakPower)),
			slog.String("meter", fmt.Sprintf("%.0f%%", spectrum.PowerPercent(f.PeakPower))))
	}
	if r.recorder != nil {
		attrs = append(attrs, slog.String("recorded", humanize.Bytes(uint64(r.recorder.Frames())*2)))
	}
	r.logger.Info("status", attrs...)

	dir := r.config.Output.SnapshotDir
	if dir == "" {
		return
	}

	if err := r.writeSnapshot(dir); err != nil {
		r.logger.Warn("writing snapshot", slog.String("error", err.Error()))
	}
}

func (r *runner) writeSnapshot(dir string) error {
	width, height, _ := r.monitor.Size()

	var img image.Image
	if ev := r.monitor.Digital(); ev != nil {
		rgba, err := r.renderer.RenderDigital(ev, width, height)
		if err != nil {
			return fmt.Errorf("rendering digital overlay: %w", err)
		}
		img = rgba
	} else {
		rgba, _, err := r.renderer.Render(r.monitor.Scene(), width, height)
		if err != nil {
			return fmt.Errorf("rendering spectrum: %w", err)
		}
		img = rgba
	}

	if err := writePNG(filepath.Join(dir, spectrumFile), img); err != nil {
		return err
	}
	return writePNG(filepath.Join(dir, waterfallFile), r.monitor.Waterfall().Image())
}

// writePNG encodes img next to path and renames it into place, so readers
// never see a partial file.
func writePNG(path string, img image.Image) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.png")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if err = png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}
