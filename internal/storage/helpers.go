package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// configToString converts config to the stored representation. Strings and
// byte slices are stored as is, anything else as JSON.
func configToString(config any) (*string, error) {
	if config == nil {
		return nil, nil
	}

	var s string
	switch c := config.(type) {
	case string:
		s = c

	case []byte:
		s = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		s = string(p)
	}

	return &s, nil
}

func toSampleData(sessionID int64, s *sensor.SensorCombined) *sampleData {
	ax, ay, az := s.Accelerometer()
	gx, gy, gz := s.Gyro()

	return &sampleData{
		SessionID:   sessionID,
		TimestampNs: s.Timestamp.UnixNano(),
		AccelX:      ax,
		AccelY:      ay,
		AccelZ:      az,
		GyroX:       gx,
		GyroY:       gy,
		GyroZ:       gz,
		AccelDtUs:   s.AccelerometerIntegralDt,
		GyroDtUs:    s.GyroIntegralDt,
		Clipping:    s.AccelerometerClipping,
	}
}

func (d *sampleData) toSensorCombined() *sensor.SensorCombined {
	return &sensor.SensorCombined{
		Timestamp:               time.Unix(0, d.TimestampNs).UTC(),
		GyroRad:                 [3]float32{float32(d.GyroX), float32(d.GyroY), float32(d.GyroZ)},
		GyroIntegralDt:          d.GyroDtUs,
		AccelerometerMS2:        [3]float32{float32(d.AccelX), float32(d.AccelY), float32(d.AccelZ)},
		AccelerometerIntegralDt: d.AccelDtUs,
		AccelerometerClipping:   d.Clipping,
	}
}

func (d *sessionData) toSession() *Session {
	sess := Session{
		ID:        d.ID,
		UUID:      d.UUID,
		StartTime: d.StartTime,
		Topic:     d.Topic,
		Summary:   d.Summary,
	}
	if d.EndTime.Valid {
		sess.EndTime = &d.EndTime.Time
	}
	if d.Config.Valid {
		sess.Config = &d.Config.String
	}
	return &sess
}
