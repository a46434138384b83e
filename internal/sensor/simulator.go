package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

const (
	// StandardGravity in m/s²
	StandardGravity = 9.80665

	// ClippingLimit is the accelerometer range in m/s² (±16g)
	ClippingLimit = 16 * StandardGravity

	defaultPeriod     = 4 * time.Millisecond // 250 Hz
	defaultAccelNoise = 0.05                 // m/s², 1σ
	defaultGyroNoise  = 0.002                // rad/s, 1σ
)

// WithPeriod sets the publishing period of the simulator
func WithPeriod(period time.Duration) func(*Simulator) {
	return func(s *Simulator) {
		s.period = period
	}
}

// WithNoise sets the standard deviation of the accelerometer (m/s²) and gyro (rad/s) noise
func WithNoise(accel, gyro float64) func(*Simulator) {
	return func(s *Simulator) {
		s.accelNoise = accel
		s.gyroNoise = gyro
	}
}

// WithGravity sets the magnitude of the gravity vector seen by the accelerometer
func WithGravity(g float64) func(*Simulator) {
	return func(s *Simulator) {
		s.gravity = g
	}
}

// WithSeed makes the generated noise reproducible
func WithSeed(seed uint64) func(*Simulator) {
	return func(s *Simulator) {
		s.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger for the simulator
func WithLogger(logger *slog.Logger) func(*Simulator) {
	return func(s *Simulator) {
		s.logger = logger.With(slog.String("publisher", "simulator"))
	}
}

// Simulator publishes synthetic SensorCombined samples of a vehicle at rest,
// standing in for the IMU driver when no flight controller is attached.
type Simulator struct {
	pub *uorb.Publisher

	period     time.Duration
	gravity    float64
	accelNoise float64
	gyroNoise  float64
	rand       *rand.Rand

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	logger *slog.Logger
}

// NewSimulator creates a new Simulator publishing through pub
func NewSimulator(pub *uorb.Publisher, options ...func(*Simulator)) *Simulator {
	s := Simulator{
		pub:        pub,
		period:     defaultPeriod,
		gravity:    StandardGravity,
		accelNoise: defaultAccelNoise,
		gyroNoise:  defaultGyroNoise,
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Start begins publishing samples until ctx is cancelled or Stop is called.
// The returned channel is closed when publishing stops; it receives an error
// first if publishing failed.
func (s *Simulator) Start(ctx context.Context) (<-chan error, error) {
	if s.period <= 0 {
		return nil, fmt.Errorf("invalid publishing period: %s", s.period)
	}
	if !s.isRunning.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("simulator is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	stopped := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(stopped)
		defer s.isRunning.Store(false)

		s.logger.Info("publishing samples...", slog.String("topic", s.pub.Topic().Name), slog.Duration("period", s.period))

		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		var published uint64
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("publishing stopped", slog.Uint64("published", published))
				return

			case now := <-ticker.C:
				sample := s.Sample(now)
				if err := s.pub.Publish(&sample); err != nil {
					if errors.Is(err, uorb.ErrClosed) {
						s.logger.Info("broker closed, publishing stopped", slog.Uint64("published", published))
						return
					}

					s.logger.Error(err.Error())
					stopped <- fmt.Errorf("publishing sample: %w", err)
					return
				}
				published++
			}
		}
	}()

	return stopped, nil
}

// Stop stops publishing and waits for the publishing goroutine to exit
func (s *Simulator) Stop() {
	if !s.isRunning.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
}

// IsRunning returns true if the simulator is publishing
func (s *Simulator) IsRunning() bool {
	return s.isRunning.Load()
}

// Sample generates a single sample timestamped at now. It is not safe to call
// concurrently with a running simulator.
func (s *Simulator) Sample(now time.Time) SensorCombined {
	dt := uint32(s.period / time.Microsecond)

	sample := SensorCombined{
		Timestamp:               now.UTC(),
		GyroIntegralDt:          dt,
		AccelerometerIntegralDt: dt,
	}

	for i := range 3 {
		sample.GyroRad[i] = float32(s.rand.NormFloat64() * s.gyroNoise)

		a := s.rand.NormFloat64() * s.accelNoise
		if i == 2 {
			a -= s.gravity // FRD frame: gravity points down, measured as -g on Z at rest
		}
		if math.Abs(a) > ClippingLimit {
			a = math.Copysign(ClippingLimit, a)
			sample.AccelerometerClipping |= 1 << i
		}
		sample.AccelerometerMS2[i] = float32(a)
	}

	return sample
}
