package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/acquisition"
	"github.com/roman-kulish/flight-sensors/internal/metrics"
	"github.com/roman-kulish/flight-sensors/internal/sensor"
	"github.com/roman-kulish/flight-sensors/internal/storage"
	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

const (
	storageDir      = "data"
	storageDatabase = "flight_sensors.sqlite"
)

// Run wires the broker, the optional simulator, storage and metrics and runs
// the acquisition loop once. Only setup failures are returned.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	broker := uorb.NewBroker(uorb.WithLogger(logger))
	defer broker.Close()

	topic := uorb.Metadata{Name: config.Acquisition.Topic}

	options := []func(*acquisition.Loop){
		acquisition.WithLogger(logger),
		acquisition.WithTopic(topic),
		acquisition.WithIterations(config.Acquisition.Iterations),
		acquisition.WithInterval(time.Duration(config.Acquisition.Interval)),
		acquisition.WithTimeout(time.Duration(config.Acquisition.Timeout)),
		acquisition.WithErrorLogPolicy(config.Acquisition.ErrorLog),
	}

	if config.Simulator.Enabled {
		sim, err := startSimulator(ctx, broker, topic, &config.Simulator, logger)
		if err != nil {
			return fmt.Errorf("failed to start simulator: %w", err)
		}
		defer sim.Stop()
	}

	var (
		store     *storage.SqliteStore
		buffered  *storage.BufferedRecorder
		sessionID int64
	)
	if config.Storage.Enabled {
		if store, err = createStorage(&config.Storage); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if cErr := store.Close(); cErr != nil && err == nil {
				err = fmt.Errorf("failed to close storage: %w", cErr)
			}
		}()

		if sessionID, err = store.CreateSession(ctx, topic.Name, config.Acquisition); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		logger.Info("recording session", slog.Int64("sessionID", sessionID))

		if config.Storage.MaxBatchSize > 0 {
			if buffered, err = storage.NewBufferedRecorder(store, sessionID, config.Storage.MaxBatchSize); err != nil {
				return fmt.Errorf("failed to create recorder: %w", err)
			}
			options = append(options, acquisition.WithRecorder(buffered))
		} else {
			options = append(options, acquisition.WithRecorder(store.Recorder(sessionID)))
		}
	}

	var collector *metrics.Collector
	if config.Metrics.Textfile != "" {
		if collector, err = metrics.NewCollector(); err != nil {
			return fmt.Errorf("failed to create metrics collector: %w", err)
		}
		options = append(options, acquisition.WithObserver(collector))
	}

	start := time.Now()
	report, err := acquisition.NewLoop(broker, options...).Run(ctx)
	if err != nil {
		if store != nil {
			// close the session out so it is not listed as running
			if fErr := store.FinishSession(context.WithoutCancel(ctx), sessionID, storage.Summary{}); fErr != nil {
				logger.Error(fmt.Sprintf("failed to finish session: %s", fErr.Error()), slog.Int64("sessionID", sessionID))
			}
		}
		return err
	}

	logger.Debug(fmt.Sprintf("acquisition took %s", time.Since(start).Round(time.Millisecond)),
		slog.Int("spurious", report.Spurious),
		slog.Int("suppressed", report.Suppressed))

	// ctx may already be cancelled by a signal
	finishCtx := context.WithoutCancel(ctx)

	if buffered != nil {
		if fErr := buffered.Flush(finishCtx); fErr != nil {
			logger.Error(fmt.Sprintf("failed to write buffered samples: %s", fErr.Error()), slog.Int("pending", buffered.Pending()))
		}
	}

	if store != nil {
		summary := storage.Summary{
			Iterations: report.Iterations,
			Samples:    report.Samples,
			Timeouts:   report.Timeouts,
			Errors:     report.Errors,
		}
		if fErr := store.FinishSession(finishCtx, sessionID, summary); fErr != nil {
			logger.Error(fmt.Sprintf("failed to finish session: %s", fErr.Error()), slog.Int64("sessionID", sessionID))
		}
	}

	if collector != nil {
		if wErr := collector.WriteTextfile(config.Metrics.Textfile); wErr != nil {
			logger.Error(fmt.Sprintf("failed to write metrics: %s", wErr.Error()), slog.String("path", config.Metrics.Textfile))
		}
	}

	return nil
}

func startSimulator(ctx context.Context, broker *uorb.Broker, topic uorb.Metadata, config *SimulatorConfig, logger *slog.Logger) (*sensor.Simulator, error) {
	pub, err := broker.Advertise(topic)
	if err != nil {
		return nil, fmt.Errorf("advertising '%s': %w", topic.Name, err)
	}

	options := []func(*sensor.Simulator){
		sensor.WithLogger(logger),
		sensor.WithPeriod(time.Duration(config.Period)),
		sensor.WithNoise(config.AccelNoise, config.GyroNoise),
	}
	if config.Seed != nil {
		options = append(options, sensor.WithSeed(*config.Seed))
	}

	sim := sensor.NewSimulator(pub, options...)
	stopped, err := sim.Start(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		for err := range stopped {
			logger.Error(fmt.Sprintf("simulator stopped: %s", err.Error()))
		}
	}()

	return sim, nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = storageDir
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return storage.NewSqliteStore(filepath.Join(dir, config.Database)), nil
}
