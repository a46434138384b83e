package app

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/acquisition"
)

func TestReadConfig(t *testing.T) {
	const input = `
settings:
  logLevel: debug
acquisition:
  topic: sensor_accel
  iterations: 20
  interval: 50ms
  timeout: 2s
  errorLog:
    burst: 3
    every: 7
simulator:
  enabled: true
  period: 10ms
  seed: 42
storage:
  enabled: true
  dataDirectory: /var/lib/flight
metrics:
  textfile: /tmp/acquire.prom
`

	config, err := ReadConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if config.Settings.LogLevel != slog.LevelDebug {
		t.Errorf("Expected log level %s, got %s", slog.LevelDebug, config.Settings.LogLevel)
	}

	a := config.Acquisition
	if a.Topic != "sensor_accel" || a.Iterations != 20 {
		t.Errorf("Unexpected acquisition config: %+v", a)
	}
	if time.Duration(a.Interval) != 50*time.Millisecond {
		t.Errorf("Expected interval 50ms, got %s", a.Interval)
	}
	if time.Duration(a.Timeout) != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %s", a.Timeout)
	}
	if a.ErrorLog != (acquisition.ErrorLogPolicy{Burst: 3, Every: 7}) {
		t.Errorf("Unexpected error log policy: %+v", a.ErrorLog)
	}

	s := config.Simulator
	if !s.Enabled || time.Duration(s.Period) != 10*time.Millisecond {
		t.Errorf("Unexpected simulator config: %+v", s)
	}
	if s.Seed == nil || *s.Seed != 42 {
		t.Errorf("Expected seed 42, got %v", s.Seed)
	}
	if s.AccelNoise != 0.05 {
		t.Errorf("Expected default accel noise to be kept, got %v", s.AccelNoise)
	}

	if !config.Storage.Enabled || config.Storage.DataDirectory != "/var/lib/flight" {
		t.Errorf("Unexpected storage config: %+v", config.Storage)
	}
	if config.Storage.Database != storageDatabase {
		t.Errorf("Expected default database %s, got %s", storageDatabase, config.Storage.Database)
	}
	if config.Metrics.Textfile != "/tmp/acquire.prom" {
		t.Errorf("Unexpected metrics textfile: %s", config.Metrics.Textfile)
	}
}

func TestReadConfig_Defaults(t *testing.T) {
	config, err := ReadConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	a := config.Acquisition
	if a.Topic != "sensor_combined" {
		t.Errorf("Expected topic sensor_combined, got %s", a.Topic)
	}
	if a.Iterations != acquisition.DefaultIterations {
		t.Errorf("Expected %d iterations, got %d", acquisition.DefaultIterations, a.Iterations)
	}
	if time.Duration(a.Interval) != 200*time.Millisecond || time.Duration(a.Timeout) != time.Second {
		t.Errorf("Unexpected interval/timeout: %s/%s", a.Interval, a.Timeout)
	}
	if a.ErrorLog != acquisition.DefaultErrorLogPolicy {
		t.Errorf("Unexpected error log policy: %+v", a.ErrorLog)
	}
	if config.Simulator.Enabled || config.Storage.Enabled || config.Metrics.Textfile != "" {
		t.Errorf("Expected optional components to be disabled: %+v", config)
	}
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		configError bool
	}{
		{
			name:  "unknown field",
			input: "acquisition:\n  iterationz: 5\n",
		},
		{
			name:  "bad duration",
			input: "acquisition:\n  interval: soon\n",
		},
		{
			name:  "bad log level",
			input: "settings:\n  logLevel: loud\n",
		},
		{
			name:        "negative iterations",
			input:       "acquisition:\n  iterations: -1\n",
			configError: true,
		},
		{
			name:        "zero timeout",
			input:       "acquisition:\n  timeout: 0s\n",
			configError: true,
		},
		{
			name:        "empty topic",
			input:       "acquisition:\n  topic: \"\"\n",
			configError: true,
		},
		{
			name:        "simulator without period",
			input:       "simulator:\n  enabled: true\n  period: 0s\n",
			configError: true,
		},
		{
			name:        "storage without database",
			input:       "storage:\n  enabled: true\n  database: \"\"\n",
			configError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadConfig(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var configErr *ConfigError
			if got := errors.As(err, &configErr); got != tt.configError {
				t.Errorf("Expected ConfigError %v, got %v (%v)", tt.configError, got, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("acquisition:\n  iterations: 3\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Acquisition.Iterations != 3 {
		t.Errorf("Expected 3 iterations, got %d", config.Acquisition.Iterations)
	}

	if _, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDuration_String(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{Duration(200 * time.Millisecond), "200ms"},
		{Duration(time.Second), "1s"},
		{Duration(90 * time.Second), "1m30s"},
	}

	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Duration(%d).String() = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestLoadConfig_Example(t *testing.T) {
	config, err := LoadConfig(filepath.Join("..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.LogLevel != slog.LevelInfo {
		t.Errorf("Expected log level INFO, got %s", config.Settings.LogLevel)
	}
	if !config.Simulator.Enabled || !config.Storage.Enabled {
		t.Error("Expected simulator and storage to be enabled")
	}
	if config.Acquisition.ErrorLog != acquisition.DefaultErrorLogPolicy {
		t.Errorf("Expected default error log policy, got %+v", config.Acquisition.ErrorLog)
	}
	if time.Duration(config.Acquisition.Interval) != acquisition.DefaultInterval {
		t.Errorf("Expected interval %s, got %s", acquisition.DefaultInterval, config.Acquisition.Interval)
	}
}
