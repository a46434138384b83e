package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 10.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0

	defaultPlotWidth  = 1200
	defaultPlotHeight = 600
	minPlotSize       = 100

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 60
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05.000"
	defaultDatetimeFormat = time.DateTime
)

// ErrEmptyTrace is returned when there is nothing to render
var ErrEmptyTrace = errors.New("trace has no samples")

var (
	axisColors = [3]color.Color{
		color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, // X
		color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}, // Y
		color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, // Z
	}
	axisNames = [3]string{"X", "Y", "Z"}

	gridColor = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for the legend
	Left   int // Space for value scale
	Bottom int // Space for time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the trace plot
type RenderConfig struct {
	Width  int // Plot area width in pixels
	Height int // Plot area height in pixels

	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location

	FontSize      float64
	NoAnnotations bool

	BorderConfig BorderConfig
}

// TraceRenderer draws accelerometer traces
type TraceRenderer struct {
	config RenderConfig
}

// NewTraceRenderer creates a new renderer with the given configuration
func NewTraceRenderer(config RenderConfig) (*TraceRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultPlotWidth
	}
	if config.Height == 0 {
		config.Height = defaultPlotHeight
	}
	if config.Width < minPlotSize || config.Height < minPlotSize {
		return nil, fmt.Errorf("plot must be at least %dx%d pixels", minPlotSize, minPlotSize)
	}
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &TraceRenderer{config: config}, nil
}

// Render creates an image of the trace with annotations
func (r *TraceRenderer) Render(trace *Trace) (*image.RGBA, error) {
	if trace.Len() == 0 {
		return nil, ErrEmptyTrace
	}

	b := r.config.BorderConfig
	fullWidth := r.config.Width + b.Left + b.Right
	fullHeight := r.config.Height + b.Top + b.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plot := newPlotArea(image.Rect(b.Left, b.Top, b.Left+r.config.Width, b.Top+r.config.Height), trace)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			TimeFormat:     r.config.TimeFormat,
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        b,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, plot, trace); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrace(img, plot, trace)

	return img, nil
}

// renderTrace draws one polyline per axis, Z last so gravity stays on top
func (r *TraceRenderer) renderTrace(img *image.RGBA, plot *plotArea, trace *Trace) {
	for axis, values := range trace.Axes {
		c := axisColors[axis]
		prevX, prevY := plot.x(trace.Timestamps[0]), plot.y(values[0])
		img.Set(prevX, prevY, c)

		for i := 1; i < len(values); i++ {
			x, y := plot.x(trace.Timestamps[i]), plot.y(values[i])
			drawLine(img, prevX, prevY, x, y, c)
			prevX, prevY = x, y
		}
	}
}

// plotArea maps samples onto image coordinates
type plotArea struct {
	rect   image.Rectangle
	start  time.Time
	span   time.Duration
	lo, hi float64
}

func newPlotArea(rect image.Rectangle, trace *Trace) *plotArea {
	lo, hi := trace.Bounds()
	return &plotArea{
		rect:  rect,
		start: trace.TimestampStart,
		span:  trace.Duration(),
		lo:    lo,
		hi:    hi,
	}
}

func (p *plotArea) x(t time.Time) int {
	if p.span <= 0 {
		return p.rect.Min.X + p.rect.Dx()/2
	}
	ratio := float64(t.Sub(p.start)) / float64(p.span)
	return p.rect.Min.X + int(math.Round(ratio*float64(p.rect.Dx()-1)))
}

func (p *plotArea) y(v float64) int {
	ratio := (p.hi - v) / (p.hi - p.lo)
	ratio = math.Max(0, math.Min(1, ratio))
	return p.rect.Min.Y + int(math.Round(ratio*float64(p.rect.Dy()-1)))
}

// drawLine draws a straight line using Bresenham's algorithm
func drawLine(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Internal annotator implementation
type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, plot *plotArea, trace *Trace) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *plotArea, *Trace) error
	}{
		{"drawing value scale", a.drawValueScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing legend", a.drawLegend},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, plot, trace); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawValueScale(img *image.RGBA, plot *plotArea, _ *Trace) error {
	step := calculateNiceStep(plot.hi-plot.lo, float64(plot.rect.Dy())/(pixelsPerLabel/2))
	descent := a.fontFace.Metrics().Descent.Round()

	for v := math.Ceil(plot.lo/step) * step; v <= plot.hi; v += step {
		y := plot.y(v)

		// Grid line across the plot, tick mark in the border
		for x := plot.rect.Min.X; x < plot.rect.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := plot.rect.Min.X - tickMarkLength; x < plot.rect.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatValue(v)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(plot.rect.Min.X-tickMarkLength-3-width, y+a.fontHeight()/2-descent)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, plot *plotArea, trace *Trace) error {
	if plot.span <= 0 {
		return nil
	}

	step := time.Duration(calculateNiceStep(float64(plot.span), float64(plot.rect.Dx())/pixelsPerLabel))
	textY := plot.rect.Max.Y + tickMarkLength + a.fontHeight()

	for offset := time.Duration(0); offset <= plot.span; offset += step {
		ts := trace.TimestampStart.Add(offset)
		x := plot.x(ts)

		for y := plot.rect.Max.Y; y < plot.rect.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := ts.In(a.config.Location).Format(a.config.TimeFormat)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-width/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawLegend(img *image.RGBA, plot *plotArea, _ *Trace) error {
	textY := plot.rect.Min.Y - (a.config.Borders.Top-a.fontHeight())/2 - a.fontFace.Metrics().Descent.Round()
	x := plot.rect.Min.X

	for i, name := range axisNames {
		// Color swatch
		swatch := image.Rect(x, textY-a.fontHeight()/2-4, x+16, textY-a.fontHeight()/2+4)
		draw.Draw(img, swatch, image.NewUniform(axisColors[i]), image.Point{}, draw.Src)
		x += 20

		label := name + " (m/s²)"
		end, err := a.context.DrawString(label, freetype.Pt(x, textY))
		if err != nil {
			return fmt.Errorf("drawing legend label: %w", err)
		}
		x = end.X.Round() + 20
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, _ *plotArea, trace *Trace) error {
	info := fmt.Sprintf("Time: %s - %s; %s samples over %s; %s clipped",
		trace.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		trace.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat),
		humanize.Comma(int64(trace.Len())),
		trace.Duration().Round(time.Millisecond),
		humanize.Comma(int64(trace.Clipped)),
	)

	textY := img.Bounds().Max.Y - a.fontFace.Metrics().Descent.Round() - 5
	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(info, pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// Helper functions

// calculateNiceStep returns a 1, 2 or 5 times power of ten step splitting
// range_ into roughly the desired number of labels.
func calculateNiceStep(range_, desired float64) float64 {
	if range_ <= 0 {
		return 1
	}
	if desired < 1 {
		desired = 1
	}

	rough := range_ / desired
	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= rough {
			return step
		}
	}
	return 10 * magnitude
}

func formatValue(v float64) string {
	if math.Abs(v) < 1e-9 {
		v = 0
	}
	return humanize.FtoaWithDigits(v, 2)
}
