package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
	"github.com/roman-kulish/flight-sensors/internal/uorb"
)

var errInterrupted = errors.New("interrupted system call")

// step scripts the result of a single Poll call.
type step struct {
	n       int
	err     error
	revents uorb.Event
}

var (
	ready    = step{n: 1, revents: uorb.EventIn}
	timeout  = step{}
	waitErr  = step{err: errInterrupted}
	spurious = step{n: 1}
)

// scriptedTransport replays a fixed sequence of poll results. Once the script
// is exhausted every further poll times out.
type scriptedTransport struct {
	steps []step
	polls int

	sample  sensor.SensorCombined
	copies  int
	copyErr error

	subscribeErr error
	topic        uorb.Metadata
	interval     time.Duration
	timeouts     []time.Duration
	unsubscribed bool
}

func (s *scriptedTransport) Subscribe(topic uorb.Metadata) (uorb.Handle, error) {
	if s.subscribeErr != nil {
		return 0, s.subscribeErr
	}
	s.topic = topic
	return 1, nil
}

func (s *scriptedTransport) SetInterval(_ uorb.Handle, interval time.Duration) error {
	s.interval = interval
	return nil
}

func (s *scriptedTransport) Poll(_ context.Context, fds []uorb.PollFD, timeout time.Duration) (int, error) {
	s.timeouts = append(s.timeouts, timeout)

	st := step{}
	if s.polls < len(s.steps) {
		st = s.steps[s.polls]
	}
	s.polls++

	fds[0].REvents = st.revents
	return st.n, st.err
}

func (s *scriptedTransport) Copy(_ uorb.Metadata, _ uorb.Handle, dst any) error {
	s.copies++
	if s.copyErr != nil {
		return s.copyErr
	}
	*(dst.(*sensor.SensorCombined)) = s.sample
	return nil
}

func (s *scriptedTransport) Unsubscribe(uorb.Handle) error {
	s.unsubscribed = true
	return nil
}

type logRecord struct {
	level slog.Level
	msg   string
}

// captureHandler records every log message in order.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]logRecord
}

func newCaptureLogger() (*slog.Logger, func() []logRecord) {
	h := captureHandler{mu: &sync.Mutex{}, records: &[]logRecord{}}
	return slog.New(h), func() []logRecord {
		h.mu.Lock()
		defer h.mu.Unlock()
		return append([]logRecord(nil), *h.records...)
	}
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, logRecord{level: r.Level, msg: r.Message})
	return nil
}

func (h captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h captureHandler) WithGroup(string) slog.Handler      { return h }

// iterationLogs drops lifecycle and debug messages, keeping what the loop
// reports per poll cycle plus the final "finished".
func iterationLogs(records []logRecord) []logRecord {
	var out []logRecord
	for _, r := range records {
		if r.level == slog.LevelDebug || strings.HasPrefix(r.msg, "starting") {
			continue
		}
		out = append(out, r)
	}
	return out
}

type recordingRecorder struct {
	samples []sensor.SensorCombined
	err     error
}

func (r *recordingRecorder) Record(_ context.Context, s *sensor.SensorCombined) error {
	if r.err != nil {
		return r.err
	}
	r.samples = append(r.samples, *s)
	return nil
}

type countingObserver struct {
	outcomes   map[string]int
	suppressed int
	errors     int
}

func (o *countingObserver) ObserveOutcome(outcome string, _ time.Duration) {
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) ObserveSuppressed() { o.suppressed++ }
func (o *countingObserver) SetErrors(n int)    { o.errors = n }
