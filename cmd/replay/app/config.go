package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/render"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

const (
	defaultWidth   = 1024
	defaultMaxRows = 2000
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	Width         int
	MaxRows       int
	Theme         render.ColorTheme
	LevelAlpha    float64
	StartTime     *time.Time
	EndTime       *time.Time
	ListSessions  bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:     ImagePNG,
		Width:      defaultWidth,
		MaxRows:    defaultMaxRows,
		Theme:      render.ClassicTheme,
		LevelAlpha: render.DefaultLevelAlpha,
	}
}

func NewConfigFromCLI(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, from, to string
	fs.StringVar(&c.DBPath, "db", "", "Path to the capture database")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Width, "width", defaultWidth, "Image width in pixels")
	fs.IntVar(&c.MaxRows, "max-rows", defaultMaxRows, "Keep at most this many of the latest frames")
	fs.StringVar(&theme, "theme", string(render.ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.Float64Var(&c.LevelAlpha, "alpha", render.DefaultLevelAlpha, "Auto-level smoothing factor")
	fs.StringVar(&from, "from", "", "Only frames received at or after this RFC 3339 time")
	fs.StringVar(&to, "to", "", "Only frames received at or before this RFC 3339 time")
	fs.BoolVar(&c.ListSessions, "list", false, "List captured sessions and exit")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable the information bar")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var errs []error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "from":
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid start time: %w", err))
				return
			}
			c.StartTime = &t

		case "to":
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid end time: %w", err))
				return
			}
			c.EndTime = &t
		}
	})

	var err error
	if c.Theme, err = render.ParseTheme(theme); err != nil {
		errs = append(errs, err)
	}

	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if !c.ListSessions {
		if c.SessionID <= 0 {
			errs = append(errs, errors.New("session id is required"))
		}
		if c.OutputFile == "" {
			errs = append(errs, errors.New("output file is required"))
		}
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			errs = append(errs, fmt.Errorf("invalid image format: %s", imageFormat))
		}
		if c.Width <= 0 || c.MaxRows <= 0 {
			errs = append(errs, fmt.Errorf("invalid image size: width %d, max rows %d", c.Width, c.MaxRows))
		}
		if c.LevelAlpha <= 0 || c.LevelAlpha > 1 {
			errs = append(errs, fmt.Errorf("level alpha must be in (0, 1]: %g", c.LevelAlpha))
		}
		if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
			errs = append(errs, errors.New("end time is before start time"))
		}
	}

	if err = errors.Join(errs...); err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if c.OutputFile != "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}
