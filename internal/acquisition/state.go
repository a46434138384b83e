package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"
)

const (
	StateIdle            = "idle"
	StateWaiting         = "waiting"
	StateHandlingTimeout = "handling_timeout"
	StateHandlingError   = "handling_error"
	StateHandlingData    = "handling_data"
	StateFinished        = "finished"

	eventStart   = "start"
	eventTimeout = "timeout"
	eventError   = "error"
	eventData    = "data"
	eventResume  = "resume"
	eventFinish  = "finish"
)

var handlingStates = []string{StateHandlingTimeout, StateHandlingError, StateHandlingData}

func newStateMachine(logger *slog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateWaiting},
			{Name: eventTimeout, Src: []string{StateWaiting}, Dst: StateHandlingTimeout},
			{Name: eventError, Src: []string{StateWaiting}, Dst: StateHandlingError},
			{Name: eventData, Src: []string{StateWaiting}, Dst: StateHandlingData},
			{Name: eventResume, Src: handlingStates, Dst: StateWaiting},
			{Name: eventFinish, Src: []string{StateWaiting}, Dst: StateFinished},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("state transition", slog.String("event", e.Event), slog.String("from", e.Src), slog.String("to", e.Dst))
			},
		},
	)
}

func outcomeEvent(o Outcome) string {
	switch o {
	case OutcomeTimeout:
		return eventTimeout
	case OutcomeError:
		return eventError
	default:
		return eventData
	}
}

// transition fires event on the loop state machine. The machine is only ever
// driven from the loop goroutine, so a failure here is a programming error.
func (l *Loop) transition(ctx context.Context, event string) error {
	err := l.fsm.Event(ctx, event)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("state transition '%s' from '%s': %w", event, l.fsm.Current(), err)
	}
	return nil
}
