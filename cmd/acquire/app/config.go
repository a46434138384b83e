package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/flight-sensors/internal/acquisition"
	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

// ConfigError is returned when the configuration is invalid
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// Duration is a time.Duration read from and written to configuration files
// in the time.ParseDuration format, e.g. "200ms" or "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// AcquisitionConfig represents the acquisition loop settings
type AcquisitionConfig struct {
	Topic      string                     `yaml:"topic" json:"topic"`
	Iterations int                        `yaml:"iterations" json:"iterations"`
	Interval   Duration                   `yaml:"interval" json:"interval"` // minimum time between two delivered samples
	Timeout    Duration                   `yaml:"timeout" json:"timeout"`   // how long a single cycle waits for data
	ErrorLog   acquisition.ErrorLogPolicy `yaml:"errorLog" json:"errorLog"`
}

// SimulatorConfig represents the synthetic IMU publisher settings
type SimulatorConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Period     Duration `yaml:"period"`
	AccelNoise float64  `yaml:"accelNoise"` // m/s², 1σ
	GyroNoise  float64  `yaml:"gyroNoise"`  // rad/s, 1σ
	Seed       *uint64  `yaml:"seed"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	Database      string `yaml:"database"`
	MaxBatchSize  int    `yaml:"maxBatchSize"` // samples written per transaction, 0 writes each sample immediately
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node-exporter textfile written after the run, empty disables
}

// NewConfig returns a configuration matching the defaults of the acquisition loop
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo},
		Acquisition: AcquisitionConfig{
			Topic:      sensor.TopicSensorCombined.Name,
			Iterations: acquisition.DefaultIterations,
			Interval:   Duration(acquisition.DefaultInterval),
			Timeout:    Duration(acquisition.DefaultTimeout),
			ErrorLog:   acquisition.DefaultErrorLogPolicy,
		},
		Simulator: SimulatorConfig{
			Period:     Duration(4 * time.Millisecond),
			AccelNoise: 0.05,
			GyroNoise:  0.002,
		},
		Storage: StorageConfig{
			DataDirectory: storageDir,
			Database:      storageDatabase,
		},
	}
}

// LoadConfig reads the YAML configuration at path on top of the defaults
// and validates it.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	return ReadConfig(f)
}

// ReadConfig reads the YAML configuration from r on top of the defaults
// and validates it.
func ReadConfig(r io.Reader) (*Config, error) {
	config := NewConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	a := c.Acquisition
	switch {
	case a.Topic == "":
		return NewConfigError("acquisition.topic is required")
	case a.Iterations < 0:
		return NewConfigError(fmt.Sprintf("acquisition.iterations must not be negative: %d", a.Iterations))
	case a.Interval < 0:
		return NewConfigError(fmt.Sprintf("acquisition.interval must not be negative: %s", a.Interval))
	case a.Timeout <= 0:
		return NewConfigError(fmt.Sprintf("acquisition.timeout must be positive: %s", a.Timeout))
	case a.ErrorLog.Burst < 0:
		return NewConfigError(fmt.Sprintf("acquisition.errorLog.burst must not be negative: %d", a.ErrorLog.Burst))
	}

	if s := c.Simulator; s.Enabled {
		switch {
		case s.Period <= 0:
			return NewConfigError(fmt.Sprintf("simulator.period must be positive: %s", s.Period))
		case s.AccelNoise < 0 || s.GyroNoise < 0:
			return NewConfigError("simulator noise must not be negative")
		}
	}

	if st := c.Storage; st.Enabled {
		switch {
		case st.Database == "":
			return NewConfigError("storage.database is required when storage is enabled")
		case st.MaxBatchSize < 0:
			return NewConfigError(fmt.Sprintf("storage.maxBatchSize must not be negative: %d", st.MaxBatchSize))
		}
	}

	return nil
}
