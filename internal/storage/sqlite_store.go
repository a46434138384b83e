package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	now func() time.Time
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a new store backed by the Sqlite database at dbPath.
// Connections are opened and the schema is initialized on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath, now: time.Now}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, topic string, config any) (sessionID int64, err error) {
	configData, err := configToString(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, uuid.NewString(), s.now().UTC(), topic, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) FinishSession(ctx context.Context, sessionID int64, summary Summary) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, finishSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		s.now().UTC(),
		summary.Iterations,
		summary.Samples,
		summary.Timeouts,
		summary.Errors,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return querySession(ctx, db, id)
}

func querySession(ctx context.Context, db *sql.DB, id int64) (session *Session, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = scanSession(stmt.QueryRowContext(ctx, id), &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("session %d: %w", id, ErrNotFound)
			return
		}
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return data.toSession(), nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = scanSession(rows, &data); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, data.toSession())
	}
	err = rows.Err()
	return
}

func scanSession(row interface{ Scan(...any) error }, data *sessionData) error {
	return row.Scan(
		&data.ID,
		&data.UUID,
		&data.StartTime,
		&data.EndTime,
		&data.Topic,
		&data.Config,
		&data.Summary.Iterations,
		&data.Summary.Samples,
		&data.Summary.Timeouts,
		&data.Summary.Errors,
	)
}

func (s *SqliteStore) StoreSample(ctx context.Context, sessionID int64, sample *sensor.SensorCombined) (sampleID int64, err error) {
	if sample == nil {
		err = errors.New("sample required")
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toSampleData(sessionID, sample)

	result, err := stmt.ExecContext(
		ctx,
		data.SessionID,
		data.TimestampNs,
		data.AccelX,
		data.AccelY,
		data.AccelZ,
		data.GyroX,
		data.GyroY,
		data.GyroZ,
		data.AccelDtUs,
		data.GyroDtUs,
		data.Clipping,
	)
	if err != nil {
		err = fmt.Errorf("inserting sample: %w", err)
		return
	}

	sampleID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting sample ID: %w", err)
	}
	return
}

// StoreSamples saves a batch of samples within a single transaction.
func (s *SqliteStore) StoreSamples(ctx context.Context, sessionID int64, samples []*sensor.SensorCombined) (err error) {
	if len(samples) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollbackWithError(tx, &err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, sample := range samples {
		data := toSampleData(sessionID, sample)
		if _, err = stmt.ExecContext(
			ctx,
			data.SessionID,
			data.TimestampNs,
			data.AccelX,
			data.AccelY,
			data.AccelZ,
			data.GyroX,
			data.GyroY,
			data.GyroZ,
			data.AccelDtUs,
			data.GyroDtUs,
			data.Clipping,
		); err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReadSamples creates a new SampleReader over the samples of a session.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - sessionID: Unique identifier of the session to read from
//   - opts: Optional configuration parameters for the reader (WithStartTime, WithEndTime,
//     WithTimeRange, WithLimit)
//
// The returned SampleReader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
//
// Returns ErrNotFound if the session doesn't exist.
func (s *SqliteStore) ReadSamples(ctx context.Context, sessionID int64, opts ...ReaderOption) (SampleReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteSampleReader(ctx, db, sessionID, opts...)
}

// Recorder returns a recorder storing every sample into the given session.
func (s *SqliteStore) Recorder(sessionID int64) *Recorder {
	return NewRecorder(s, sessionID)
}

func (s *SqliteStore) isClosed() bool {
	return s.closed.Load()
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
