package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/acquisition"
	"github.com/roman-kulish/flight-sensors/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SimulatorStorageMetrics(t *testing.T) {
	dir := t.TempDir()

	seed := uint64(7)
	config := NewConfig()
	config.Acquisition.Iterations = 3
	config.Acquisition.Interval = Duration(10 * time.Millisecond)
	config.Simulator.Enabled = true
	config.Simulator.Seed = &seed
	config.Storage.Enabled = true
	config.Storage.DataDirectory = dir
	config.Metrics.Textfile = filepath.Join(dir, "acquire.prom")

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := storage.NewSqliteStore(filepath.Join(dir, storageDatabase))
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}

	sess := sessions[0]
	if !sess.Finished() {
		t.Error("Expected session to be finished")
	}
	if sess.Summary.Iterations != 3 || sess.Summary.Samples != 3 {
		t.Errorf("Unexpected summary: %+v", sess.Summary)
	}
	if sess.Config == nil || !strings.Contains(*sess.Config, `"topic":"sensor_combined"`) {
		t.Errorf("Expected acquisition config to be stored, got %v", sess.Config)
	}

	r, err := store.ReadSamples(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	defer r.Close()

	var n int
	for r.Next(context.Background()) {
		n++
	}
	if n != 3 {
		t.Errorf("Expected 3 stored samples, got %d", n)
	}

	prom, err := os.ReadFile(config.Metrics.Textfile)
	if err != nil {
		t.Fatalf("Failed to read metrics textfile: %v", err)
	}
	if !strings.Contains(string(prom), `flight_sensors_acquisition_outcomes_total{outcome="data"} 3`) {
		t.Errorf("Expected data outcomes in metrics, got:\n%s", prom)
	}
}

func TestRun_NoPublisher(t *testing.T) {
	config := NewConfig()
	config.Acquisition.Iterations = 2
	config.Acquisition.Timeout = Duration(5 * time.Millisecond)

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Errorf("Expected timeouts not to fail the run, got %v", err)
	}
}

func TestRun_MissingStorageDirectory(t *testing.T) {
	config := NewConfig()
	config.Storage.Enabled = true
	config.Storage.DataDirectory = filepath.Join(t.TempDir(), "missing")

	if err := Run(context.Background(), config, discardLogger()); err == nil {
		t.Error("Expected error for missing storage directory")
	}
}

func TestRun_BufferedStorage(t *testing.T) {
	dir := t.TempDir()

	config := NewConfig()
	config.Acquisition.Iterations = 5
	config.Acquisition.Interval = Duration(5 * time.Millisecond)
	config.Simulator.Enabled = true
	config.Storage.Enabled = true
	config.Storage.DataDirectory = dir
	config.Storage.MaxBatchSize = 2

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := storage.NewSqliteStore(filepath.Join(dir, storageDatabase))
	defer store.Close()

	r, err := store.ReadSamples(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	defer r.Close()

	var n int
	for r.Next(context.Background()) {
		n++
	}
	if n != 5 {
		t.Errorf("Expected the last partial batch to be flushed, got %d samples", n)
	}
}

func TestRun_SetupFailureFinishesSession(t *testing.T) {
	dir := t.TempDir()

	config := NewConfig()
	config.Acquisition.Topic = "" // rejected by the broker on subscribe
	config.Storage.Enabled = true
	config.Storage.DataDirectory = dir

	if err := Run(context.Background(), config, discardLogger()); !errors.Is(err, acquisition.ErrSetup) {
		t.Fatalf("Expected ErrSetup, got %v", err)
	}

	store := storage.NewSqliteStore(filepath.Join(dir, storageDatabase))
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].Finished() {
		t.Error("Expected session to be finished after a setup failure")
	}
	if sessions[0].Summary != (storage.Summary{}) {
		t.Errorf("Expected empty summary, got %+v", sessions[0].Summary)
	}
}

func TestRun_SessionConfigKeys(t *testing.T) {
	dir := t.TempDir()

	config := NewConfig()
	config.Acquisition.Iterations = 0
	config.Storage.Enabled = true
	config.Storage.DataDirectory = dir

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := storage.NewSqliteStore(filepath.Join(dir, storageDatabase))
	defer store.Close()

	sess, err := store.Session(context.Background(), 1)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.Config == nil {
		t.Fatal("Expected acquisition config to be stored")
	}
	if !strings.Contains(*sess.Config, `"errorLog":{"burst":10,"every":50}`) {
		t.Errorf("Expected camelCase error log keys, got %s", *sess.Config)
	}
}
