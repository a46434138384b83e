package sensor

import (
	"time"

	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

// TopicSensorCombined is the topic carrying SensorCombined samples.
var TopicSensorCombined = uorb.Metadata{Name: "sensor_combined"}

// SensorCombined is the combined IMU sample published by the sensors module
type SensorCombined struct {
	Timestamp               time.Time  `cbor:"1,keyasint" json:"timestamp"`               // Timestamp of the measurement
	GyroRad                 [3]float32 `cbor:"2,keyasint" json:"gyroRad"`                 // Angular velocity in rad/s (FRD body frame)
	GyroIntegralDt          uint32     `cbor:"3,keyasint" json:"gyroIntegralDt"`          // Gyro integration period in µs
	AccelerometerMS2        [3]float32 `cbor:"4,keyasint" json:"accelerometerMS2"`        // Acceleration in m/s² (FRD body frame)
	AccelerometerIntegralDt uint32     `cbor:"5,keyasint" json:"accelerometerIntegralDt"` // Accelerometer integration period in µs
	AccelerometerClipping   uint8      `cbor:"6,keyasint" json:"accelerometerClipping"`   // Bitfield of clipped axes
}

// Accelerometer returns the acceleration vector as float64 values.
func (s *SensorCombined) Accelerometer() (x, y, z float64) {
	return float64(s.AccelerometerMS2[0]), float64(s.AccelerometerMS2[1]), float64(s.AccelerometerMS2[2])
}

// Gyro returns the angular velocity vector as float64 values.
func (s *SensorCombined) Gyro() (x, y, z float64) {
	return float64(s.GyroRad[0]), float64(s.GyroRad[1]), float64(s.GyroRad[2])
}
