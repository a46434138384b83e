package app

import (
	"testing"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

func TestTrace_Update(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tr := NewTrace()
	tr.Update(&sensor.SensorCombined{Timestamp: base, AccelerometerMS2: [3]float32{1, -2, -9.5}})
	tr.Update(&sensor.SensorCombined{
		Timestamp:             base.Add(time.Second),
		AccelerometerMS2:      [3]float32{3, 0, -10},
		AccelerometerClipping: 0b001,
	})

	if tr.Len() != 2 {
		t.Fatalf("Expected 2 samples, got %d", tr.Len())
	}
	if tr.Duration() != time.Second {
		t.Errorf("Expected duration 1s, got %s", tr.Duration())
	}
	if tr.ValueMin != -10 || tr.ValueMax != 3 {
		t.Errorf("Expected value range [-10, 3], got [%v, %v]", tr.ValueMin, tr.ValueMax)
	}
	if tr.Clipped != 1 {
		t.Errorf("Expected 1 clipped sample, got %d", tr.Clipped)
	}
	if got := tr.Axes[0]; got[0] != 1 || got[1] != 3 {
		t.Errorf("Unexpected X axis: %v", got)
	}

	lo, hi := tr.Bounds()
	if lo >= -10 || hi <= 3 {
		t.Errorf("Expected padded bounds around [-10, 3], got [%v, %v]", lo, hi)
	}
}

func TestTrace_BoundsFlat(t *testing.T) {
	tr := NewTrace()
	if lo, hi := tr.Bounds(); lo != -1 || hi != 1 {
		t.Errorf("Expected [-1, 1] for an empty trace, got [%v, %v]", lo, hi)
	}

	tr.Update(&sensor.SensorCombined{AccelerometerMS2: [3]float32{2, 2, 2}})
	if lo, hi := tr.Bounds(); lo != 1 || hi != 3 {
		t.Errorf("Expected [1, 3] for a flat trace, got [%v, %v]", lo, hi)
	}
}
