package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-monitor/internal/audio"
	"github.com/roman-kulish/radio-monitor/internal/control"
	"github.com/roman-kulish/radio-monitor/internal/monitor"
	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
	"github.com/roman-kulish/radio-monitor/internal/storage"
	"github.com/roman-kulish/radio-monitor/internal/transport"
	"github.com/roman-kulish/radio-monitor/internal/view"
)

const (
	messageBuffer  = 64
	controlTimeout = 5 * time.Second
)

type message struct {
	messageType int
	payload     []byte
}

type runner struct {
	config *Config
	logger *slog.Logger
	out    io.Writer

	client    *control.Client
	session   *transport.Session
	monitor   *monitor.Monitor
	renderer  *render.SpectrumRenderer
	recorder  *audio.Recorder
	store     storage.Store
	sessionID int64
	activity  transport.Activity

	ctx      context.Context
	messages chan message
	lines    chan string
}

// Run connects to the stream server, starts the configured activity and
// processes the stream until ctx is done.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	return run(ctx, config, logger, os.Stdin, os.Stdout)
}

func run(ctx context.Context, config *Config, logger *slog.Logger, in io.Reader, out io.Writer) (err error) {
	r := runner{
		config:   config,
		logger:   logger,
		out:      out,
		ctx:      ctx,
		messages: make(chan message, messageBuffer),
		lines:    make(chan string),
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "creating control client", fn: r.initClient},
		{msg: "creating spectrum renderer", fn: r.initRenderer},
		{msg: "opening capture", fn: r.initCapture},
		{msg: "creating monitor", fn: r.initMonitor},
		{msg: "creating transport session", fn: r.initSession},
	}
	for _, s := range steps {
		if err = s.fn(ctx); err != nil {
			return errors.Join(fmt.Errorf("%s: %w", s.msg, err), r.close())
		}
	}

	if err = r.start(ctx); err != nil {
		return errors.Join(err, r.close())
	}

	go readCommands(ctx, in, r.lines)

	r.loop(ctx)
	return r.stop()
}

func (r *runner) initClient(context.Context) (err error) {
	r.client, err = control.NewClient(r.config.Server.URL, control.WithLogger(r.logger))
	return
}

func (r *runner) initRenderer(context.Context) (err error) {
	r.renderer, err = render.NewSpectrumRenderer(render.DefaultLayout)
	return
}

func (r *runner) initCapture(ctx context.Context) (err error) {
	if path := r.config.Capture.WAV; path != "" {
		if r.recorder, err = audio.NewRecorder(path, audio.SampleRate); err != nil {
			return err
		}
		r.logger.Info("recording audio", slog.String("path", path))
	}

	if path := r.config.Capture.Database; path != "" {
		r.store = storage.NewSqliteStore(path)
		r.sessionID, err = r.store.CreateSession(ctx, r.client.StreamURL(), r.config.Tuning.Mode, r.config)
		if err != nil {
			return fmt.Errorf("creating capture session: %w", err)
		}
		r.logger.Info("capturing frames", slog.String("path", path), slog.Int64("session", r.sessionID))
	}
	return nil
}

func (r *runner) initMonitor(ctx context.Context) error {
	lut, err := r.config.ColorLUT()
	if err != nil {
		return err
	}

	d := &r.config.Display
	bookmarks := d.Bookmarks
	if bands, err := r.client.Bands(ctx); err != nil {
		r.logger.Warn("loading band plan", slog.String("error", err.Error()))
	} else {
		bookmarks = append(bookmarks, bands...)
	}

	options := []func(m *monitor.Monitor){
		monitor.WithLogger(r.logger),
		monitor.WithViewport(view.NewViewport(view.WithZoomStep(d.ZoomStep), view.WithMaxZoom(d.MaxZoom))),
		monitor.WithScheduler(audio.NewScheduler(r.openOutput(), audio.WithLogger(r.logger))),
		monitor.WithTuning(r.config.Tuning.FrequencyMHz, r.config.Tuning.Mode),
		monitor.WithBandwidths(d.bandwidths),
		monitor.WithBookmarks(bookmarks),
		monitor.WithSize(d.Width, d.SpectrumHeight, d.WaterfallHeight),
		monitor.WithDragThreshold(d.DragThreshold),
		monitor.WithLevelAlpha(d.LevelAlpha),
		monitor.WithCallLimit(d.CallLimit),
		monitor.WithTuneHandler(r.tune),
		monitor.WithDigitalHandler(r.logCalls),
	}
	if r.recorder != nil {
		options = append(options, monitor.WithRecorder(r.recorder))
	}
	if r.store != nil {
		options = append(options, monitor.WithFrameHandler(r.storeFrame))
	}

	r.monitor = monitor.New(lut, options...)
	r.logger.Info("bookmarks loaded", slog.Int("count", len(bookmarks)))
	return nil
}

// openOutput returns the sound card, or nil when playback is disabled or
// unavailable. A nil device makes the scheduler drop every chunk.
func (r *runner) openOutput() audio.Device {
	if r.config.Settings.NoAudio {
		return nil
	}

	out, err := audio.NewOutput(audio.SampleRate)
	if err != nil {
		r.logger.Warn("audio output unavailable, continuing without playback", slog.String("error", err.Error()))
		return nil
	}
	return out
}

func (r *runner) initSession(context.Context) error {
	r.session = transport.NewSession(r.client.StreamURL(),
		transport.WithLogger(r.logger),
		transport.WithRetryDelay(time.Duration(r.config.Server.RetryDelay)),
		transport.WithMessageHandler(r.enqueue),
		transport.WithStatusHandler(func(s transport.Status) {
			r.logger.Info("stream status", slog.String("status", s.String()))
		}),
	)
	return nil
}

// enqueue hands a message from the read goroutine to the event loop.
func (r *runner) enqueue(messageType int, payload []byte) {
	select {
	case r.messages <- message{messageType: messageType, payload: payload}:
	case <-r.ctx.Done():
	}
}

func (r *runner) start(ctx context.Context) error {
	t := r.config.Tuning
	cctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	switch {
	case t.Digital:
		err := r.client.DigitalStart(cctx, control.DigitalRequest{FreqMHz: t.FrequencyMHz, Mode: t.DigitalMode, Gain: t.Gain})
		if err != nil {
			return fmt.Errorf("starting digital monitor: %w", err)
		}
		r.activity = transport.ActivityDigital

	case t.SmartTune:
		res, err := r.client.SmartTune(cctx, t.FrequencyMHz, t.Gain)
		if err != nil {
			return fmt.Errorf("smart tuning: %w", err)
		}
		r.activity = transport.ActivityDigital
		if res.Analog() {
			r.activity = transport.ActivityAudio
			r.monitor.SetTuning(t.FrequencyMHz, res.Mode)
		}
		r.logger.Info("smart tune", slog.String("decoder", res.Decoder), slog.String("mode", res.Mode.String()), slog.String("protocol", res.Protocol))

	default:
		err := r.client.Start(cctx, control.StartRequest{FreqMHz: t.FrequencyMHz, Mode: t.Mode, Gain: t.Gain})
		if err != nil {
			return fmt.Errorf("starting receiver: %w", err)
		}
		r.activity = transport.ActivityAudio
	}

	r.logger.Info("receiver started",
		slog.String("frequency", humanize.SIWithDigits(t.FrequencyMHz*1e6, 6, "Hz")),
		slog.String("mode", t.Mode.String()),
		slog.String("gain", t.Gain))

	// a failed first dial keeps retrying in the background
	if err := r.session.Start(ctx, r.activity); err != nil {
		r.logger.Warn("stream not connected yet", slog.String("error", err.Error()))
	}
	return nil
}

func (r *runner) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(r.config.Output.SnapshotInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-r.messages:
			// failures are logged by the monitor and never stop the stream
			_ = r.monitor.HandleMessage(m.messageType, m.payload)

		case line := <-r.lines:
			r.execute(ctx, line)

		case <-ticker.C:
			r.snapshot()
		}
	}
}

func (r *runner) tune(mhz float64) {
	ctx, cancel := context.WithTimeout(r.ctx, controlTimeout)
	defer cancel()

	if err := r.client.Tune(ctx, mhz); err != nil {
		r.logger.Warn("tuning", slog.Float64("mhz", mhz), slog.String("error", err.Error()))
		return
	}
	r.logger.Info("tuned", slog.String("frequency", humanize.SIWithDigits(mhz*1e6, 6, "Hz")))
}

func (r *runner) storeFrame(f *spectrum.TimedFrame) {
	if err := r.store.StoreFrame(r.ctx, r.sessionID, f); err != nil {
		r.logger.Warn("capturing frame", slog.String("error", err.Error()))
	}
}

func (r *runner) logCalls(ev *spectrum.DigitalEvent, added []spectrum.DigitalCall) {
	for _, c := range added {
		r.logger.Info("digital call",
			slog.String("frequency", humanize.SIWithDigits(ev.FreqMHz*1e6, 6, "Hz")),
			slog.String("mode", ev.Mode),
			slog.String("time", c.Time),
			slog.String("message", c.Message))
	}
}

// stop ends the activity on the server and releases everything in reverse
// order of creation.
func (r *runner) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	r.session.Stop(r.activity)

	var err error
	switch r.activity {
	case transport.ActivityDigital:
		err = r.client.DigitalStop(ctx)
	case transport.ActivityAudio:
		err = r.client.Stop(ctx)
	}
	if err != nil {
		r.logger.Warn("stopping receiver", slog.String("error", err.Error()))
	}

	stats := r.monitor.Stats()
	r.logger.Info("session finished",
		slog.String("frames", humanize.Comma(int64(stats.Frames))),
		slog.String("dropped", humanize.Comma(int64(stats.Dropped))),
		slog.String("audioChunks", humanize.Comma(int64(stats.AudioChunks))),
		slog.Int("calls", stats.Calls))

	return r.close()
}

func (r *runner) close() error {
	ops := []struct {
		msg string
		fn  func() error
	}{
		{msg: "closing transport session", fn: func() error {
			if r.session == nil {
				return nil
			}
			return r.session.Close()
		}},
		{msg: "closing monitor", fn: func() error {
			if r.monitor == nil {
				if r.recorder != nil {
					return r.recorder.Close()
				}
				return nil
			}
			return r.monitor.Close()
		}},
		{msg: "closing renderer", fn: func() error {
			if r.renderer == nil {
				return nil
			}
			return r.renderer.Close()
		}},
		{msg: "closing capture store", fn: func() error {
			if r.store == nil {
				return nil
			}
			return r.store.Close()
		}},
	}

	var errs []error
	for _, op := range ops {
		if err := op.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", op.msg, err))
		}
	}
	return errors.Join(errs...)
}
