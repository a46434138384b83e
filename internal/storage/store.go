package storage

import (
	"context"
	"errors"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store provides an interface for managing acquisition data storage operations.
// It handles sessions and the IMU samples received within them.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new acquisition session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - topic: Name of the topic the samples are read from
	//   - config: Optional acquisition configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, topic string, config any) (sessionID int64, err error)

	// FinishSession stamps the end time and the outcome counters of a session.
	//
	// Returns ErrNotFound if the session does not exist.
	FinishSession(ctx context.Context, sessionID int64, summary Summary) error

	// Session retrieves a specific acquisition session by its ID.
	//
	// Returns ErrNotFound if the session does not exist.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all acquisition sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreSample saves a single IMU sample for a specific session.
	//
	// Returns:
	//   - sampleID: Unique identifier for the stored sample
	//   - error: If storage fails or context is cancelled
	StoreSample(ctx context.Context, sessionID int64, s *sensor.SensorCombined) (sampleID int64, err error)

	// ReadSamples returns a reader iterating over the samples of a session in
	// timestamp order. The reader must be closed after use.
	ReadSamples(ctx context.Context, sessionID int64, opts ...ReaderOption) (SampleReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

// SampleReader provides an iterator-based interface for reading stored samples.
type SampleReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another sample
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current sample in the iteration.
	Current() *sensor.SensorCombined

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}
