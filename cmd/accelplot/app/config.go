package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	StartTime     *time.Time
	EndTime       *time.Time
	Limit         int
	Width         int
	Height        int
	TimeZone      *time.Location
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Width:    defaultPlotWidth,
		Height:   defaultPlotHeight,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ExitOnError)
	return NewConfigFromArgs(fs, os.Args[1:])
}

// NewConfigFromArgs parses args with fs. The output file gets the image
// format appended as an extension.
func NewConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, startTime, endTime, timeZone string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&startTime, "start", "", "Plot samples from this time on (RFC 3339)")
	fs.StringVar(&endTime, "end", "", "Plot samples up to this time (RFC 3339)")
	fs.IntVar(&c.Limit, "limit", 0, "Maximum number of samples to plot, 0 for all")
	fs.IntVar(&c.Width, "width", defaultPlotWidth, "Width of the plot area in pixels")
	fs.IntVar(&c.Height, "height", defaultPlotHeight, "Height of the plot area in pixels")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of the time scale, e.g. UTC or Australia/Sydney")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and value scales")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Width < minPlotSize || c.Height < minPlotSize {
		err = fmt.Errorf("plot must be at least %dx%d pixels", minPlotSize, minPlotSize)
	} else if c.Limit < 0 {
		err = fmt.Errorf("invalid limit: %d", c.Limit)
	} else if c.StartTime, err = parseTime(startTime); err != nil {
		err = fmt.Errorf("invalid start time: %w", err)
	} else if c.EndTime, err = parseTime(endTime); err != nil {
		err = fmt.Errorf("invalid end time: %w", err)
	} else if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
		err = fmt.Errorf("invalid time zone: %w", err)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
