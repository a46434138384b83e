package uorb

import (
	"context"
	"fmt"
	"time"
)

// Poll waits until at least one entry of fds has new data, the timeout
// elapses, or the wait fails. It returns the number of ready entries and sets
// REvents on each entry; zero with a nil error means the timeout elapsed.
// A negative timeout waits indefinitely.
//
// Cancelling ctx interrupts the wait with ErrInterrupted.
func (b *Broker) Poll(ctx context.Context, fds []PollFD, timeout time.Duration) (int, error) {
	if len(fds) == 0 {
		return 0, ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	wake := make(chan struct{}, 1)
	defer b.unwatch(wake)
	if err := b.watch(fds, wake); err != nil {
		return 0, err
	}

	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		n, retry, err := b.scan(fds)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}

		// Data held back by a subscription interval becomes ready on its own.
		var throttle <-chan time.Time
		var throttleTimer *time.Timer
		if retry > 0 {
			throttleTimer = time.NewTimer(retry)
			throttle = throttleTimer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(throttleTimer)
			return 0, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case <-b.done:
			stopTimer(throttleTimer)
			return 0, ErrClosed
		case <-deadline:
			stopTimer(throttleTimer)
			return 0, nil
		case <-wake:
		case <-throttle:
		}
		stopTimer(throttleTimer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// watch validates fds and registers wake on every watched topic.
func (b *Broker) watch(fds []PollFD, wake chan struct{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for i := range fds {
		fds[i].REvents = 0

		s, ok := b.subs[fds[i].Handle]
		if !ok {
			fds[i].REvents = EventNVal
			return fmt.Errorf("%w: %d", ErrBadHandle, fds[i].Handle)
		}
		s.topic.waiters[wake] = struct{}{}
	}

	return nil
}

func (b *Broker) unwatch(wake chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Walk every topic: a handle may have been released while polling.
	for _, t := range b.topics {
		delete(t.waiters, wake)
	}
}

// scan sets REvents on every ready entry. When nothing is ready but some
// entry has data held back by its interval, retry is the shortest remaining wait.
func (b *Broker) scan(fds []PollFD) (n int, retry time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, 0, ErrClosed
	}

	now := time.Now()
	for i := range fds {
		fds[i].REvents = 0

		s, ok := b.subs[fds[i].Handle]
		if !ok {
			fds[i].REvents = EventNVal
			return 0, 0, fmt.Errorf("%w: %d", ErrBadHandle, fds[i].Handle)
		}
		if fds[i].Events&EventIn == 0 {
			continue
		}

		ready, wait := s.pending(now)
		if ready {
			fds[i].REvents |= EventIn
			n++
			continue
		}
		if wait > 0 && (retry == 0 || wait < retry) {
			retry = wait
		}
	}

	return n, retry, nil
}
