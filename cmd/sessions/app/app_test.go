package app

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/storage"
)

func TestWriteTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(-59 * time.Minute)

	sessions := []*storage.Session{
		{
			ID:        1,
			UUID:      "4b1c0f1e-0000-4000-8000-000000000001",
			StartTime: now.Add(-time.Hour),
			EndTime:   &end,
			Topic:     "sensor_combined",
			Summary:   storage.Summary{Iterations: 1500, Samples: 1498, Timeouts: 2},
		},
		{
			ID:        2,
			UUID:      "4b1c0f1e-0000-4000-8000-000000000002",
			StartTime: now.Add(-time.Minute),
			Topic:     "sensor_combined",
		},
	}

	var buf bytes.Buffer
	if err := writeTable(&buf, sessions, now); err != nil {
		t.Fatalf("writeTable failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got:\n%s", buf.String())
	}

	for _, want := range []string{"1 hour ago", "1m0s", "1,500", "1,498"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("Expected first row to contain %q, got %q", want, lines[1])
		}
	}
	for _, want := range []string{"1 minute ago", "running"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("Expected second row to contain %q, got %q", want, lines[2])
		}
	}
}

func TestRun_JSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sensors.sqlite")

	store := storage.NewSqliteStore(dbPath)
	id, err := store.CreateSession(context.Background(), "sensor_combined", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var buf bytes.Buffer
	if err = Run(context.Background(), &Config{DBPath: dbPath, JSON: true}, &buf); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var got []storage.Session
	if err = json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode output: %v\n%s", err, buf.String())
	}
	if len(got) != 1 || got[0].ID != id || got[0].Topic != "sensor_combined" {
		t.Errorf("Unexpected sessions: %+v", got)
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	err := Run(context.Background(), &Config{DBPath: filepath.Join(t.TempDir(), "missing.sqlite")}, io.Discard)
	if err == nil {
		t.Error("Expected error for a missing database")
	}
}

func TestNewConfigFromArgs(t *testing.T) {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	if _, err := NewConfigFromArgs(fs, nil); err == nil {
		t.Error("Expected error without db path")
	}
}
