// Package acquisition runs a bounded number of poll cycles against a single
// sensor topic, classifying every wait as a timeout, an error or new data.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

const (
	OutcomeTimeout  Outcome = iota // Nothing arrived within the timeout
	OutcomeError                   // The wait itself failed
	OutcomeData                    // New data is ready on the subscription
	OutcomeSpurious                // The wait reported readiness but not for the subscription
)

var (
	// ErrSetup is returned by Run when the subscription cannot be created.
	// No iteration runs in that case.
	ErrSetup = errors.New("acquisition setup failed")

	// ErrAlreadyRun is returned when Run is called on a loop that already ran.
	ErrAlreadyRun = errors.New("acquisition loop already ran")
)

// Transport is the publish/subscribe transport the loop reads from.
// *uorb.Broker implements it.
type Transport interface {
	Subscribe(topic uorb.Metadata) (uorb.Handle, error)
	SetInterval(h uorb.Handle, interval time.Duration) error
	Poll(ctx context.Context, fds []uorb.PollFD, timeout time.Duration) (int, error)
	Copy(topic uorb.Metadata, h uorb.Handle, dst any) error
	Unsubscribe(h uorb.Handle) error
}

// Recorder receives every sample copied by the loop.
type Recorder interface {
	Record(ctx context.Context, sample *sensor.SensorCombined) error
}

// Observer receives loop instrumentation. *metrics.Collector implements it.
type Observer interface {
	ObserveOutcome(outcome string, waited time.Duration)
	ObserveSuppressed()
	SetErrors(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(string, time.Duration) {}
func (nopObserver) ObserveSuppressed()                   {}
func (nopObserver) SetErrors(int)                        {}

// Outcome is the classification of a single wait.
type Outcome int

func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	case OutcomeData:
		return "data"
	case OutcomeSpurious:
		return "spurious"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps the result of a poll over a single entry to an Outcome.
// A negative count is treated as a failed wait even without an error.
func Classify(n int, err error, fd uorb.PollFD) Outcome {
	switch {
	case err != nil, n < 0:
		return OutcomeError
	case n == 0:
		return OutcomeTimeout
	case fd.REvents&uorb.EventIn != 0:
		return OutcomeData
	default:
		return OutcomeSpurious
	}
}

// Report summarises a completed run.
type Report struct {
	Iterations int // Poll cycles executed
	Samples    int // Samples copied and reported
	Timeouts   int // Waits that timed out
	Errors     int // Waits that failed
	Suppressed int // Failed waits whose log message was throttled
	Spurious   int // Waits that returned readiness without the data bit
}
