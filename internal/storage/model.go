package storage

import (
	"database/sql"
	"time"
)

// Summary holds the outcome counters of a finished acquisition session
type Summary struct {
	Iterations int `json:"iterations"` // Poll cycles executed
	Samples    int `json:"samples"`    // Samples received and reported
	Timeouts   int `json:"timeouts"`   // Poll cycles that timed out
	Errors     int `json:"errors"`     // Poll cycles that failed
}

// Session represents a single acquisition run.
type Session struct {
	ID        int64      `json:"ID"`                // Unique identifier for the session
	UUID      string     `json:"uuid"`              // Globally unique identifier, stable across databases
	StartTime time.Time  `json:"startTime"`         // When the acquisition began
	EndTime   *time.Time `json:"endTime,omitempty"` // When the acquisition finished, nil if it never did
	Topic     string     `json:"topic"`             // Topic the samples were read from
	Config    *string    `json:"config,omitempty"`  // Optional acquisition configuration in JSON format
	Summary   Summary    `json:"summary"`           // Outcome counters, zero until the session is finished
}

// Finished reports whether the session was closed with FinishSession.
func (s *Session) Finished() bool {
	return s.EndTime != nil
}

type sessionData struct {
	ID        int64
	UUID      string
	StartTime time.Time
	EndTime   sql.NullTime
	Topic     string
	Config    sql.NullString
	Summary   Summary
}

// sampleData represents a single stored IMU sample
type sampleData struct {
	SessionID   int64
	TimestampNs int64
	AccelX      float64
	AccelY      float64
	AccelZ      float64
	GyroX       float64
	GyroY       float64
	GyroZ       float64
	AccelDtUs   uint32
	GyroDtUs    uint32
	Clipping    uint8
}
