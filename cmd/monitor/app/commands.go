package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-monitor/internal/control"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
	"github.com/roman-kulish/radio-monitor/internal/view"
)

// wheelNotch is the deltaY of one mouse wheel notch.
const wheelNotch = 100.0

var errUnknownCommand = errors.New("unknown command")

type commandKind uint8

const (
	cmdZoomIn commandKind = iota + 1
	cmdZoomOut
	cmdClick
	cmdDrag
	cmdReset
	cmdTune
	cmdNudge
	cmdMode
	cmdGain
	cmdPreset
	cmdScan
	cmdState
	cmdResize
	cmdSnapshot
	cmdHelp
)

// command is one line typed on stdin, e.g. "zoom in 300" or "nudge 3 up".
type command struct {
	kind    commandKind
	x       float64 // pointer position for zoom, click and the start of a drag
	x2      float64 // end of a drag
	mhz     float64
	mhz2    float64
	digit   int
	dir     int
	width   int
	height  int
	height2 int
	text    string
}

const helpText = `commands:
  zoom in|out [x]       zoom around pixel x (centre when omitted)
  click x               tune to the frequency under pixel x
  drag x0 x1            pan the zoomed spectrum
  reset                 show the full span
  tune MHz              tune to a frequency
  nudge DIGIT up|down   step one digit of the readout (0 = 100 MHz ... 8 = 1 Hz)
  mode wfm|fm|nfm|am    change demodulation mode
  gain DB|auto          change receiver gain
  preset NAME           apply a band preset
  scan START END        list carriers between two frequencies in MHz
  state                 print the receiver state
  resize W H1 H2        change canvas width, spectrum and waterfall heights
  snapshot              write the snapshot files now`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, errUnknownCommand
	}

	name, args := fields[0], fields[1:]
	var c command
	var err error

	switch name {
	case "zoom":
		if len(args) < 1 || len(args) > 2 {
			return c, fmt.Errorf("usage: zoom in|out [x]")
		}
		switch args[0] {
		case "in", "+":
			c.kind = cmdZoomIn
		case "out", "-":
			c.kind = cmdZoomOut
		default:
			return c, fmt.Errorf("usage: zoom in|out [x]")
		}
		c.x = -1
		if len(args) == 2 {
			c.x, err = parseFloat(args[1])
		}

	case "click":
		c.kind = cmdClick
		if len(args) != 1 {
			return c, fmt.Errorf("usage: click x")
		}
		c.x, err = parseFloat(args[0])

	case "drag":
		c.kind = cmdDrag
		if len(args) != 2 {
			return c, fmt.Errorf("usage: drag x0 x1")
		}
		if c.x, err = parseFloat(args[0]); err == nil {
			c.x2, err = parseFloat(args[1])
		}

	case "reset":
		c.kind = cmdReset

	case "tune":
		c.kind = cmdTune
		if len(args) != 1 {
			return c, fmt.Errorf("usage: tune MHz")
		}
		c.mhz, err = parseFloat(args[0])

	case "nudge":
		c.kind = cmdNudge
		if len(args) != 2 {
			return c, fmt.Errorf("usage: nudge DIGIT up|down")
		}
		if c.digit, err = strconv.Atoi(args[0]); err != nil {
			return c, fmt.Errorf("parsing digit: %w", err)
		}
		switch args[1] {
		case "up", "+":
			c.dir = 1
		case "down", "-":
			c.dir = -1
		default:
			return c, fmt.Errorf("usage: nudge DIGIT up|down")
		}

	case "mode":
		c.kind = cmdMode
		if len(args) != 1 {
			return c, fmt.Errorf("usage: mode wfm|fm|nfm|am")
		}
		var m spectrum.Mode
		if m, err = spectrum.ParseMode(args[0]); err == nil {
			c.text = m.String()
		}

	case "gain":
		c.kind = cmdGain
		if len(args) != 1 {
			return c, fmt.Errorf("usage: gain DB|auto")
		}
		c.text = args[0]
		if c.text != control.GainAuto {
			_, err = parseFloat(c.text)
		}

	case "preset":
		c.kind = cmdPreset
		if len(args) != 1 {
			return c, fmt.Errorf("usage: preset NAME")
		}
		c.text = args[0]

	case "scan":
		c.kind = cmdScan
		if len(args) != 2 {
			return c, fmt.Errorf("usage: scan START END")
		}
		if c.mhz, err = parseFloat(args[0]); err == nil {
			c.mhz2, err = parseFloat(args[1])
		}
		if err == nil && c.mhz >= c.mhz2 {
			err = fmt.Errorf("scan start %g must be below end %g", c.mhz, c.mhz2)
		}

	case "state":
		c.kind = cmdState

	case "resize":
		c.kind = cmdResize
		if len(args) != 3 {
			return c, fmt.Errorf("usage: resize W H1 H2")
		}
		sizes := make([]int, 3)
		for i, a := range args {
			if sizes[i], err = strconv.Atoi(a); err != nil {
				return c, fmt.Errorf("parsing size: %w", err)
			}
			if sizes[i] <= 0 {
				return c, fmt.Errorf("size must be positive: %d", sizes[i])
			}
		}
		c.width, c.height, c.height2 = sizes[0], sizes[1], sizes[2]

	case "snapshot":
		c.kind = cmdSnapshot

	case "help", "?":
		c.kind = cmdHelp

	default:
		return c, fmt.Errorf("%w: %s", errUnknownCommand, name)
	}

	return c, err
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing number %q: %w", s, err)
	}
	return v, nil
}

// readCommands sends every non-empty line of r until r is exhausted or ctx is
// done.
func readCommands(ctx context.Context, r io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

// execute applies one command line to the monitor or the server.
func (r *runner) execute(ctx context.Context, line string) {
	c, err := parseCommand(line)
	if err != nil {
		r.logger.Warn("invalid command", slog.String("line", line), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	if err = r.apply(ctx, c); err != nil {
		r.logger.Warn("command failed", slog.String("line", line), slog.String("error", err.Error()))
	}
}

func (r *runner) apply(ctx context.Context, c command) error {
	m := r.monitor

	switch c.kind {
	case cmdZoomIn, cmdZoomOut:
		x := c.x
		if x < 0 {
			w, _, _ := m.Size()
			left := float64(r.renderer.Layout().Left)
			x = left + (float64(w)-left)/2
		}
		delta := -wheelNotch
		if c.kind == cmdZoomOut {
			delta = wheelNotch
		}
		m.Wheel(delta, x)
		r.logger.Info("zoom", slog.Float64("level", m.Viewport().Zoom()))

	case cmdClick:
		m.Press(c.x)
		if _, ok := m.Release(c.x); !ok {
			return errors.New("nothing to tune, no spectrum frame under the pointer")
		}

	case cmdDrag:
		m.Press(c.x)
		m.Move(c.x2)
		m.Release(c.x2)

	case cmdReset:
		m.Reset()

	case cmdTune:
		if c.mhz < view.MinTuneMHz || c.mhz > view.MaxTuneMHz {
			return fmt.Errorf("frequency %.6f MHz out of range [%g, %g]", c.mhz, view.MinTuneMHz, view.MaxTuneMHz)
		}
		_, mode := m.Tuned()
		m.SetTuning(c.mhz, mode)
		r.tune(c.mhz)

	case cmdNudge:
		if _, err := m.NudgeDigit(c.digit, c.dir); err != nil {
			return err
		}

	case cmdMode:
		mode := spectrum.Mode(c.text)
		if err := r.client.SetMode(ctx, mode); err != nil {
			return err
		}
		mhz, _ := m.Tuned()
		m.SetTuning(mhz, mode)

	case cmdGain:
		return r.client.SetGain(ctx, c.text)

	case cmdPreset:
		p, err := r.client.Preset(ctx, c.text)
		if err != nil {
			return err
		}
		m.SetTuning(p.FrequencyMHz, p.Mode)
		r.logger.Info("preset applied",
			slog.String("frequency", humanize.SIWithDigits(p.FrequencyMHz*1e6, 6, "Hz")),
			slog.String("mode", p.Mode.String()),
			slog.String("description", p.Description))

	case cmdScan:
		signals, err := r.client.Scan(ctx, control.ScanRequest{StartMHz: c.mhz, EndMHz: c.mhz2})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%d signals between %s and %s\n", len(signals),
			humanize.SIWithDigits(c.mhz*1e6, 6, "Hz"), humanize.SIWithDigits(c.mhz2*1e6, 6, "Hz"))
		for _, s := range signals {
			fmt.Fprintf(r.out, "  %-14s %6.1f dB\n", humanize.SIWithDigits(s.FreqMHz*1e6, 6, "Hz"), s.PowerDB)
		}

	case cmdState:
		s, err := r.client.State(ctx)
		if err != nil {
			return err
		}
		if s.Running {
			m.SetTuning(s.FreqMHz, s.Mode)
		}
		fmt.Fprintf(r.out, "frequency %s, mode %s, gain %v, running %t, mock %t\n",
			humanize.SIWithDigits(s.FreqMHz*1e6, 6, "Hz"), s.Mode, s.Gain, s.Running, s.Mock)

	case cmdResize:
		m.Resize(c.width, c.height, c.height2)

	case cmdSnapshot:
		r.snapshot()

	case cmdHelp:
		fmt.Fprintln(r.out, helpText)
	}
	return nil
}
