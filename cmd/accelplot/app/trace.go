package app

import (
	"math"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

// Trace accumulates accelerometer readings of a session for plotting.
type Trace struct {
	Timestamps []time.Time
	Axes       [3][]float64 // X, Y, Z in m/s²

	TimestampStart time.Time
	TimestampEnd   time.Time
	ValueMin       float64
	ValueMax       float64
	Clipped        int // samples with at least one clipped axis
}

func NewTrace() *Trace {
	return &Trace{
		ValueMin: math.Inf(1),
		ValueMax: math.Inf(-1),
	}
}

// Update appends a sample. Samples are expected in timestamp order.
func (t *Trace) Update(s *sensor.SensorCombined) {
	if len(t.Timestamps) == 0 {
		t.TimestampStart = s.Timestamp
	}
	t.TimestampEnd = s.Timestamp
	t.Timestamps = append(t.Timestamps, s.Timestamp)

	x, y, z := s.Accelerometer()
	for i, v := range [3]float64{x, y, z} {
		t.Axes[i] = append(t.Axes[i], v)
		t.ValueMin = math.Min(t.ValueMin, v)
		t.ValueMax = math.Max(t.ValueMax, v)
	}

	if s.AccelerometerClipping != 0 {
		t.Clipped++
	}
}

// Len returns the number of samples in the trace
func (t *Trace) Len() int {
	return len(t.Timestamps)
}

// Duration returns the time covered by the trace
func (t *Trace) Duration() time.Duration {
	return t.TimestampEnd.Sub(t.TimestampStart)
}

// Bounds returns the value range to plot, padded so flat traces and the
// extremes stay visible.
func (t *Trace) Bounds() (lo, hi float64) {
	if t.Len() == 0 {
		return -1, 1
	}

	lo, hi = t.ValueMin, t.ValueMax
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}
