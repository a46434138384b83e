package acquisition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/looplab/fsm"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

const (
	DefaultIterations = 5
	DefaultInterval   = 200 * time.Millisecond
	DefaultTimeout    = time.Second
)

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithTopic sets the topic the loop subscribes to
func WithTopic(topic uorb.Metadata) func(*Loop) {
	return func(l *Loop) {
		l.topic = topic
	}
}

// WithIterations sets the number of poll cycles
func WithIterations(n int) func(*Loop) {
	return func(l *Loop) {
		l.iterations = n
	}
}

// WithInterval sets the minimum interval between two samples requested from the transport
func WithInterval(interval time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.interval = interval
	}
}

// WithTimeout sets how long a single poll cycle waits for new data
func WithTimeout(timeout time.Duration) func(*Loop) {
	return func(l *Loop) {
		l.timeout = timeout
	}
}

// WithErrorLogPolicy sets the policy throttling wait error messages
func WithErrorLogPolicy(policy ErrorLogPolicy) func(*Loop) {
	return func(l *Loop) {
		l.policy = policy
	}
}

// WithRecorder sets a recorder receiving every copied sample
func WithRecorder(r Recorder) func(*Loop) {
	return func(l *Loop) {
		l.recorder = r
	}
}

// WithObserver sets the observer receiving loop instrumentation
func WithObserver(o Observer) func(*Loop) {
	return func(l *Loop) {
		l.observer = o
	}
}

// Loop polls a sensor topic a fixed number of times and reports every sample
// it receives. A Loop runs once and must not be used from multiple goroutines.
type Loop struct {
	transport Transport
	topic     uorb.Metadata

	iterations int
	interval   time.Duration
	timeout    time.Duration
	policy     ErrorLogPolicy

	errorCount int // wait errors seen so far, never reset

	fsm      *fsm.FSM
	recorder Recorder
	observer Observer
	logger   *slog.Logger
}

// NewLoop creates a new Loop reading sensor_combined from t with a discard logger
func NewLoop(t Transport, options ...func(*Loop)) *Loop {
	l := Loop{
		transport:  t,
		topic:      sensor.TopicSensorCombined,
		iterations: DefaultIterations,
		interval:   DefaultInterval,
		timeout:    DefaultTimeout,
		policy:     DefaultErrorLogPolicy,
		observer:   nopObserver{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	l.fsm = newStateMachine(l.logger)

	return &l
}

// State returns the current state of the loop
func (l *Loop) State() string {
	return l.fsm.Current()
}

// ErrorCount returns the number of failed waits seen by the loop
func (l *Loop) ErrorCount() int {
	return l.errorCount
}

// Run subscribes to the topic and executes the configured number of poll
// cycles. Timeouts and failed waits are logged and never abort the run; only
// a failure to subscribe does, in which case the error wraps ErrSetup.
//
// Cancelling ctx interrupts the pending wait. Remaining cycles still run and
// are reported as failed waits.
func (l *Loop) Run(ctx context.Context) (report Report, err error) {
	if l.State() != StateIdle {
		return report, ErrAlreadyRun
	}

	// State tracking must not be cut short by an interrupted wait.
	fsmCtx := context.WithoutCancel(ctx)

	l.logger.Info("starting sensor acquisition",
		slog.String("topic", l.topic.Name),
		slog.Int("iterations", l.iterations),
		slog.Duration("interval", l.interval),
		slog.Duration("timeout", l.timeout))

	h, err := l.transport.Subscribe(l.topic)
	if err != nil {
		return report, fmt.Errorf("%w: subscribing to '%s': %w", ErrSetup, l.topic.Name, err)
	}
	defer func() {
		if uErr := l.transport.Unsubscribe(h); uErr != nil {
			l.logger.Warn(fmt.Sprintf("failed to release subscription: %s", uErr.Error()))
		}
	}()

	if err = l.transport.SetInterval(h, l.interval); err != nil {
		l.logger.Warn(fmt.Sprintf("failed to set update interval: %s", err.Error()))
	}

	fds := []uorb.PollFD{
		{Handle: h, Events: uorb.EventIn},
	}

	if err = l.transition(fsmCtx, eventStart); err != nil {
		return report, err
	}

	for ; report.Iterations < l.iterations; report.Iterations++ {
		start := time.Now()
		n, pollErr := l.transport.Poll(ctx, fds, l.timeout)
		waited := time.Since(start)

		outcome := Classify(n, pollErr, fds[0])
		if err = l.transition(fsmCtx, outcomeEvent(outcome)); err != nil {
			return report, err
		}

		switch outcome {
		case OutcomeTimeout:
			report.Timeouts++
			l.logger.Error(fmt.Sprintf("got no data within %s", l.timeout))

		case OutcomeError:
			if pollErr == nil {
				pollErr = fmt.Errorf("poll returned %d", n)
			}
			report.Errors++
			l.handleError(pollErr, &report)

		case OutcomeData:
			l.handleData(ctx, h, &report)

		case OutcomeSpurious:
			report.Spurious++
		}

		l.observer.ObserveOutcome(outcome.String(), waited)

		if err = l.transition(fsmCtx, eventResume); err != nil {
			return report, err
		}
	}

	if err = l.transition(fsmCtx, eventFinish); err != nil {
		return report, err
	}

	l.logger.Info("finished",
		slog.Group("stats",
			slog.Int("samples", report.Samples),
			slog.Int("timeouts", report.Timeouts),
			slog.Int("errors", report.Errors),
		))

	return report, nil
}

// handleError logs the first errors and then only every so often, so a
// persistently failing wait does not flood the output. The counter advances
// whether or not the message was logged.
func (l *Loop) handleError(err error, report *Report) {
	if l.policy.ShouldLog(l.errorCount) {
		l.logger.Error(fmt.Sprintf("error return value from poll(): %s", err.Error()), slog.Int("errorCount", l.errorCount))
	} else {
		report.Suppressed++
		l.observer.ObserveSuppressed()
	}

	l.errorCount++
	l.observer.SetErrors(l.errorCount)
}

func (l *Loop) handleData(ctx context.Context, h uorb.Handle, report *Report) {
	var raw sensor.SensorCombined
	if err := l.transport.Copy(l.topic, h, &raw); err != nil {
		l.logger.Error(fmt.Sprintf("failed to copy sample: %s", err.Error()))
		return
	}

	report.Samples++

	x, y, z := raw.Accelerometer()
	l.logger.Info(fmt.Sprintf("Accelerometer:\t%8.4f\t%8.4f\t%8.4f", x, y, z))

	if l.recorder == nil {
		return
	}
	if err := l.recorder.Record(ctx, &raw); err != nil {
		l.logger.Warn(fmt.Sprintf("failed to record sample: %s", err.Error()))
	}
}
