package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.ListSessions {
		return listSessions(ctx, store, logger)
	}
	return replaySession(ctx, store, config, logger)
}

func listSessions(ctx context.Context, store storage.Store, logger *slog.Logger) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		logger.Info("no capture sessions found")
		return nil
	}

	for _, s := range sessions {
		logger.Info("capture session",
			slog.Int64("id", s.ID),
			slog.String("started", s.StartTime.Local().Format(time.DateTime)),
			slog.String("age", humanize.Time(s.StartTime)),
			slog.String("server", s.Server),
			slog.String("mode", s.Mode.String()))
	}
	return nil
}

func replaySession(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(config.StartTime.UTC(), config.EndTime.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.StartTime.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.EndTime.UTC().Format(time.DateTime)))

	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(config.StartTime.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.StartTime.UTC().Format(time.DateTime)))

	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(config.EndTime.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.EndTime.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", append(filters, slog.Int64("session", config.SessionID))...)

	reader, err := store.ReadFrames(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	history := NewHistory(config.MaxRows)
	for reader.Next(ctx) {
		history.Add(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return err
	}
	if history.Empty() {
		return fmt.Errorf("session %d: %w", config.SessionID, storage.ErrNoData)
	}

	logger.Info("finished reading frames",
		slog.Group("stats",
			slog.String("frames", humanize.Comma(int64(history.Frames))),
			slog.Int("skipped", history.Skipped),
			slog.String("minTimestamp", history.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", history.TimestampEnd.Local().Format(time.DateTime)),
			slog.String("minFreq", humanHz(history.FrequencyMin)),
			slog.String("maxFreq", humanHz(history.FrequencyMax)),
			slog.String("peakPower", fmt.Sprintf("%0.2fdB", history.PeakPower)),
		))

	lut, err := render.ThemeLUT(config.Theme)
	if err != nil {
		return fmt.Errorf("building color table: %w", err)
	}

	waterfall := render.NewWaterfall(config.Width, len(history.Rows()), lut, render.WithLevelAlpha(config.LevelAlpha))
	for _, row := range history.Rows() {
		waterfall.Push(row)
	}

	img := waterfall.Image()
	if !config.NoAnnotations {
		if img, err = annotate(waterfall.Image(), reader.Session(), history); err != nil {
			return fmt.Errorf("annotating waterfall: %w", err)
		}
	}

	logger.Info("writing waterfall",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return writeImage(config.OutputFile, config.Format, img)
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}

func humanHz(mhz float64) string {
	return humanize.SIWithDigits(mhz*1e6, 3, "Hz")
}
