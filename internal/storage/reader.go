package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

// ReaderOption configures a SampleReader with specific filtering criteria.
type ReaderOption func(*SqliteSampleReader)

// WithStartTime sets the start time filter for the sample reader.
// Samples with timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the sample reader.
// Samples with timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithLimit caps the number of samples returned by the reader.
// A value of zero or less means no limit.
func WithLimit(n int) ReaderOption {
	return func(r *SqliteSampleReader) {
		r.limit = n
	}
}

// SqliteSampleReader implements SampleReader for SQLite database backend.
type SqliteSampleReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	limit     int        // Optional maximum number of samples

	current *sensor.SensorCombined
	rows    *sql.Rows
	err     error
}

var _ SampleReader = (*SqliteSampleReader)(nil)

func newSqliteSampleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteSampleReader, error) {
	sr := &SqliteSampleReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if err := sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

func (sr *SqliteSampleReader) init(ctx context.Context) error {
	if sr.db == nil {
		return errors.New("database connection required")
	}
	if sr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: sr.loadSession},
		{msg: "initializing filters", fn: sr.initFilters},
		{msg: "initializing query", fn: sr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (sr *SqliteSampleReader) loadSession(ctx context.Context) (err error) {
	sr.session, err = querySession(ctx, sr.db, sr.sessionID)
	return
}

func (sr *SqliteSampleReader) initFilters(context.Context) error {
	if sr.startTime != nil && sr.endTime != nil && sr.startTime.After(*sr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", sr.startTime, sr.endTime)
	}
	return nil
}

func (sr *SqliteSampleReader) initQuery(ctx context.Context) (err error) {
	var from, to int64 = math.MinInt64, math.MaxInt64
	if sr.startTime != nil {
		from = sr.startTime.UnixNano()
	}
	if sr.endTime != nil {
		to = sr.endTime.UnixNano()
	}

	limit := -1 // no limit in Sqlite
	if sr.limit > 0 {
		limit = sr.limit
	}

	stmt, err := sr.db.PrepareContext(ctx, selectSamplesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if sr.rows, err = stmt.QueryContext(ctx, sr.sessionID, from, to, limit); err != nil {
		return err
	}
	return nil
}

func (sr *SqliteSampleReader) Session() *Session {
	return sr.session
}

func (sr *SqliteSampleReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		sr.err = ctx.Err()
		return false
	default:
	}

	if !sr.rows.Next() {
		sr.current = nil
		return false
	}

	var data sampleData
	if err := sr.rows.Scan(
		&data.TimestampNs,
		&data.AccelX,
		&data.AccelY,
		&data.AccelZ,
		&data.GyroX,
		&data.GyroY,
		&data.GyroZ,
		&data.AccelDtUs,
		&data.GyroDtUs,
		&data.Clipping,
	); err != nil {
		sr.err = fmt.Errorf("scanning sample: %w", err)
		return false
	}

	data.SessionID = sr.sessionID
	sr.current = data.toSensorCombined()
	return true
}

func (sr *SqliteSampleReader) Current() *sensor.SensorCombined {
	return sr.current
}

func (sr *SqliteSampleReader) Error() error {
	if sr.err != nil {
		return sr.err
	}
	if sr.rows != nil {
		return sr.rows.Err()
	}
	return nil
}

func (sr *SqliteSampleReader) Close() error {
	if sr.rows != nil {
		err := sr.rows.Close()
		sr.current = nil
		sr.rows = nil
		return err
	}
	return nil
}
