package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

// SampleStore is the subset of Store used by Recorder.
type SampleStore interface {
	StoreSample(ctx context.Context, sessionID int64, s *sensor.SensorCombined) (int64, error)
}

// Recorder persists every received sample into a single session.
type Recorder struct {
	store     SampleStore
	sessionID int64
	stored    atomic.Int64
}

// NewRecorder returns a Recorder writing into sessionID of store.
func NewRecorder(store SampleStore, sessionID int64) *Recorder {
	return &Recorder{store: store, sessionID: sessionID}
}

// Record stores the sample.
func (r *Recorder) Record(ctx context.Context, sample *sensor.SensorCombined) error {
	if _, err := r.store.StoreSample(ctx, r.sessionID, sample); err != nil {
		return fmt.Errorf("recording sample into session %d: %w", r.sessionID, err)
	}
	r.stored.Add(1)
	return nil
}

// Stored returns the number of samples recorded so far.
func (r *Recorder) Stored() int64 {
	return r.stored.Load()
}

// BatchStore is the subset of Store used by BufferedRecorder.
type BatchStore interface {
	StoreSamples(ctx context.Context, sessionID int64, samples []*sensor.SensorCombined) error
}

// BufferedRecorder collects samples in a SampleBuffer and writes them in
// batches. Flush must be called once recording is done.
type BufferedRecorder struct {
	store     BatchStore
	sessionID int64
	buffer    *SampleBuffer
	stored    atomic.Int64
}

// NewBufferedRecorder returns a recorder writing into sessionID of store in
// batches of batchSize samples.
func NewBufferedRecorder(store BatchStore, sessionID int64, batchSize int) (*BufferedRecorder, error) {
	buffer, err := NewSampleBuffer(batchSize, batchSize)
	if err != nil {
		return nil, err
	}
	return &BufferedRecorder{store: store, sessionID: sessionID, buffer: buffer}, nil
}

// Record buffers a copy of the sample and writes a batch once the buffer is full.
func (r *BufferedRecorder) Record(ctx context.Context, sample *sensor.SensorCombined) error {
	if sample == nil {
		return fmt.Errorf("cannot record nil sample")
	}

	s := *sample
	if err := r.buffer.Insert(&s); err != nil {
		return err
	}
	if !r.buffer.IsFull() {
		return nil
	}
	return r.write(ctx, r.buffer.Flush())
}

// Flush writes all buffered samples.
func (r *BufferedRecorder) Flush(ctx context.Context) error {
	return r.write(ctx, r.buffer.DrainAll())
}

func (r *BufferedRecorder) write(ctx context.Context, samples []*sensor.SensorCombined) error {
	if len(samples) == 0 {
		return nil
	}
	if err := r.store.StoreSamples(ctx, r.sessionID, samples); err != nil {
		return fmt.Errorf("writing %d samples into session %d: %w", len(samples), r.sessionID, err)
	}
	r.stored.Add(int64(len(samples)))
	return nil
}

// Stored returns the number of samples written so far.
func (r *BufferedRecorder) Stored() int64 {
	return r.stored.Load()
}

// Pending returns the number of buffered samples not written yet.
func (r *BufferedRecorder) Pending() int {
	return r.buffer.Size()
}
