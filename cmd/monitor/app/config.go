package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-monitor/internal/control"
	"github.com/roman-kulish/radio-monitor/internal/monitor"
	"github.com/roman-kulish/radio-monitor/internal/render"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
	"github.com/roman-kulish/radio-monitor/internal/transport"
	"github.com/roman-kulish/radio-monitor/internal/view"
)

const (
	defaultServerURL        = "http://localhost:8080"
	defaultFrequencyMHz     = 98.5
	defaultDigitalMode      = "dmr"
	defaultSnapshotInterval = 5 * time.Second
)

// Duration is a time.Duration read from YAML as a string such as "1.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the monitor configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Server   ServerConfig  `yaml:"server"`
	Tuning   TuningConfig  `yaml:"tuning"`
	Display  DisplayConfig `yaml:"display"`
	Output   OutputConfig  `yaml:"output"`
	Capture  CaptureConfig `yaml:"capture"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	NoAudio  bool   `yaml:"noAudio"`
}

// ServerConfig points at the stream server
type ServerConfig struct {
	URL        string   `yaml:"url"`
	RetryDelay Duration `yaml:"retryDelay"`
}

// TuningConfig is the receiver setup requested on start
type TuningConfig struct {
	FrequencyMHz float64       `yaml:"frequencyMHz"`
	Mode         spectrum.Mode `yaml:"mode"`
	Gain         string        `yaml:"gain"`
	Digital      bool          `yaml:"digital"`
	DigitalMode  string        `yaml:"digitalMode"`
	SmartTune    bool          `yaml:"smartTune"`
}

// DisplayConfig controls the rendered spectrum and waterfall
type DisplayConfig struct {
	Width           int                 `yaml:"width"`
	SpectrumHeight  int                 `yaml:"spectrumHeight"`
	WaterfallHeight int                 `yaml:"waterfallHeight"`
	Theme           string              `yaml:"theme"`
	ColorStops      []render.StopConfig `yaml:"colorStops"`
	LevelAlpha      float64             `yaml:"levelAlpha"`
	ZoomStep        float64             `yaml:"zoomStep"`
	MaxZoom         float64             `yaml:"maxZoom"`
	DragThreshold   float64             `yaml:"dragThreshold"`
	Bandwidths      map[string]float64  `yaml:"bandwidths"` // kHz per mode
	Bookmarks       []spectrum.Bookmark `yaml:"bookmarks"`
	CallLimit       int                 `yaml:"callLimit"`

	bandwidths spectrum.Bandwidths
}

// OutputConfig controls periodic snapshots
type OutputConfig struct {
	SnapshotDir      string   `yaml:"snapshotDir"`
	SnapshotInterval Duration `yaml:"snapshotInterval"`
}

// CaptureConfig enables recording of the stream
type CaptureConfig struct {
	Database string `yaml:"database"`
	WAV      string `yaml:"wav"`
}

// NewConfig returns the configuration used when no file is given.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Server: ServerConfig{
			URL:        defaultServerURL,
			RetryDelay: Duration(transport.DefaultRetryDelay),
		},
		Tuning: TuningConfig{
			FrequencyMHz: defaultFrequencyMHz,
			Mode:         spectrum.ModeWFM,
			Gain:         control.GainAuto,
			DigitalMode:  defaultDigitalMode,
		},
		Display: DisplayConfig{
			Width:           monitor.DefaultWidth,
			SpectrumHeight:  monitor.DefaultSpectrumHeight,
			WaterfallHeight: monitor.DefaultWaterfallHeight,
			Theme:           string(render.ClassicTheme),
			LevelAlpha:      render.DefaultLevelAlpha,
			ZoomStep:        view.DefaultZoomStep,
			MaxZoom:         view.DefaultMaxZoom,
			DragThreshold:   view.DefaultDragThreshold,
			CallLimit:       monitor.DefaultCallLimit,
		},
		Output: OutputConfig{
			SnapshotInterval: Duration(defaultSnapshotInterval),
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (*Config, error) {
	c := NewConfig()
	if err := yaml.NewDecoder(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// NewConfigFromCLI builds the configuration from an optional -c file and
// command line overrides.
func NewConfigFromCLI(fs *flag.FlagSet, args []string) (*Config, error) {
	var configPath, server, mode, gain, theme, logLevel string
	var freq, alpha float64
	var digital, noAudio bool
	var snapshotDir, database, wav string
	var interval time.Duration

	fs.StringVar(&configPath, "c", "", "Path to the configuration file")
	fs.StringVar(&server, "server", defaultServerURL, "Control API base URL of the stream server")
	fs.Float64Var(&freq, "freq", defaultFrequencyMHz, "Frequency to tune in MHz")
	fs.StringVar(&mode, "mode", string(spectrum.ModeWFM), "Demodulation mode. [wfm, fm, nfm, am]")
	fs.StringVar(&gain, "gain", control.GainAuto, "Receiver gain in dB or auto")
	fs.BoolVar(&digital, "digital", false, "Start the digital voice monitor instead of analog audio")
	fs.StringVar(&theme, "theme", string(render.ClassicTheme), "Waterfall color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.Float64Var(&alpha, "alpha", render.DefaultLevelAlpha, "Waterfall auto-level smoothing factor")
	fs.StringVar(&snapshotDir, "o", "", "Directory for spectrum.png and waterfall.png snapshots")
	fs.DurationVar(&interval, "interval", defaultSnapshotInterval, "Snapshot interval")
	fs.StringVar(&database, "db", "", "Capture spectral frames into this sqlite database")
	fs.StringVar(&wav, "wav", "", "Record received audio into this WAV file")
	fs.BoolVar(&noAudio, "no-audio", false, "Disable audio playback")
	fs.StringVar(&logLevel, "log-level", "info", "Log level. [debug, info, warn, error]")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := NewConfig()
	if configPath != "" {
		var err error
		if c, err = LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			c.Server.URL = server
		case "freq":
			c.Tuning.FrequencyMHz = freq
		case "mode":
			c.Tuning.Mode = spectrum.Mode(strings.ToLower(mode))
		case "gain":
			c.Tuning.Gain = gain
		case "digital":
			c.Tuning.Digital = digital
		case "theme":
			c.Display.Theme = theme
			c.Display.ColorStops = nil
		case "alpha":
			c.Display.LevelAlpha = alpha
		case "o":
			c.Output.SnapshotDir = snapshotDir
		case "interval":
			c.Output.SnapshotInterval = Duration(interval)
		case "db":
			c.Capture.Database = database
		case "wav":
			c.Capture.WAV = wav
		case "no-audio":
			c.Settings.NoAudio = noAudio
		case "log-level":
			c.Settings.LogLevel = logLevel
		}
	})

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration and resolves derived values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, errors.New("server url is required"))
	}
	if time.Duration(c.Server.RetryDelay) <= 0 {
		errs = append(errs, fmt.Errorf("retry delay must be positive: %s", c.Server.RetryDelay))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	mode, err := spectrum.ParseMode(string(c.Tuning.Mode))
	if err != nil {
		errs = append(errs, err)
	}
	c.Tuning.Mode = mode

	if f := c.Tuning.FrequencyMHz; f < view.MinTuneMHz || f > view.MaxTuneMHz {
		errs = append(errs, fmt.Errorf("frequency %.6f MHz out of range [%g, %g]", f, view.MinTuneMHz, view.MaxTuneMHz))
	}
	if c.Tuning.Gain == "" {
		c.Tuning.Gain = control.GainAuto
	}

	d := &c.Display
	if d.Width <= render.DefaultLayout.Left || d.SpectrumHeight <= 0 || d.WaterfallHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid display size %dx%d/%d", d.Width, d.SpectrumHeight, d.WaterfallHeight))
	}
	if len(d.ColorStops) == 0 {
		if _, err = render.ParseTheme(d.Theme); err != nil {
			errs = append(errs, err)
		}
	}
	if d.LevelAlpha <= 0 || d.LevelAlpha > 1 {
		errs = append(errs, fmt.Errorf("level alpha must be in (0, 1]: %g", d.LevelAlpha))
	}
	if d.ZoomStep <= 0 || d.ZoomStep >= 1 {
		errs = append(errs, fmt.Errorf("zoom step must be in (0, 1): %g", d.ZoomStep))
	}
	if d.MaxZoom < 1 {
		errs = append(errs, fmt.Errorf("max zoom must be at least 1: %g", d.MaxZoom))
	}

	d.bandwidths = spectrum.DefaultBandwidths()
	for name, khz := range d.Bandwidths {
		m, err := spectrum.ParseMode(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("bandwidths: %w", err))
			continue
		}
		if khz <= 0 {
			errs = append(errs, fmt.Errorf("bandwidths: %s must be positive", name))
			continue
		}
		d.bandwidths[m] = khz
	}

	if time.Duration(c.Output.SnapshotInterval) <= 0 {
		errs = append(errs, fmt.Errorf("snapshot interval must be positive: %s", c.Output.SnapshotInterval))
	}

	return errors.Join(errs...)
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// ColorLUT builds the waterfall palette from custom stops or the theme.
func (c *Config) ColorLUT() (*render.ColorLUT, error) {
	if len(c.Display.ColorStops) == 0 {
		theme, err := render.ParseTheme(c.Display.Theme)
		if err != nil {
			return nil, err
		}
		return render.ThemeLUT(theme)
	}

	stops, err := render.ParseStops(c.Display.ColorStops)
	if err != nil {
		return nil, fmt.Errorf("parsing color stops: %w", err)
	}
	return render.NewColorLUT(stops)
}
