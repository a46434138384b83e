package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-sensors/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	trace, err := readTrace(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewTraceRenderer(RenderConfig{
		Width:         config.Width,
		Height:        config.Height,
		Location:      config.TimeZone,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating trace renderer: %w", err)
	}

	logger.Info("rendering trace",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(trace)
	if err != nil {
		return fmt.Errorf("rendering trace: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	if err = encodeImage(out, img, config.Format); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return out.Close()
}

func readTrace(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*Trace, error) {
	var opts []storage.ReaderOption
	var filters []any
	if config.StartTime != nil {
		opts = append(opts, storage.WithStartTime(config.StartTime.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.StartTime.UTC().Format(time.DateTime)))
	}
	if config.EndTime != nil {
		opts = append(opts, storage.WithEndTime(config.EndTime.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.EndTime.UTC().Format(time.DateTime)))
	}
	if config.Limit > 0 {
		opts = append(opts, storage.WithLimit(config.Limit))
		filters = append(filters, slog.Int("limit", config.Limit))
	}

	logger.Info("reader configuration", filters...)

	iter, err := store.ReadSamples(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	sess := iter.Session()
	logger.Info("reading samples",
		slog.Int64("sessionID", sess.ID),
		slog.String("topic", sess.Topic),
		slog.String("started", humanize.Time(sess.StartTime)))

	trace := NewTrace()
	for iter.Next(ctx) {
		trace.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}

	if trace.Len() == 0 {
		return nil, fmt.Errorf("session %d: %w", config.SessionID, ErrEmptyTrace)
	}

	logger.Info("finished reading samples",
		slog.Group("stats",
			slog.String("samples", humanize.Comma(int64(trace.Len()))),
			slog.String("minTimestamp", trace.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", trace.TimestampEnd.Local().Format(time.DateTime)),
			slog.String("minValue", fmt.Sprintf("%0.4fm/s²", trace.ValueMin)),
			slog.String("maxValue", fmt.Sprintf("%0.4fm/s²", trace.ValueMax)),
			slog.Int("clipped", trace.Clipped),
		))

	return trace, nil
}

func encodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)

	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return fmt.Errorf("unsupported image format: %s", format)
}
