package uorb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoll_Timeout(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	h, _ := b.Subscribe(testTopic)
	fds := []PollFD{{Handle: h, Events: EventIn}}

	start := time.Now()
	n, err := b.Poll(context.Background(), fds, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected timeout (0), got %d", n)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Poll returned before the timeout: %s", elapsed)
	}
	if fds[0].REvents != 0 {
		t.Errorf("Expected no returned events, got %b", fds[0].REvents)
	}
}

func TestPoll_WakesOnPublish(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	pub, _ := b.Advertise(testTopic)
	h, _ := b.Subscribe(testTopic)
	fds := []PollFD{{Handle: h, Events: EventIn}}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = pub.Publish(testMessage{Seq: 1})
	}()

	n, err := b.Poll(context.Background(), fds, time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 ready entry, got %d", n)
	}
	if fds[0].REvents&EventIn == 0 {
		t.Error("Expected EventIn to be set")
	}
}

func TestPoll_ReadyWithoutInterest(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	pub, _ := b.Advertise(testTopic)
	h, _ := b.Subscribe(testTopic)
	_ = pub.Publish(testMessage{Seq: 1})

	fds := []PollFD{{Handle: h}}
	n, err := b.Poll(context.Background(), fds, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 0 || fds[0].REvents != 0 {
		t.Errorf("Expected entry without interest to stay idle, got n=%d revents=%b", n, fds[0].REvents)
	}
}

func TestPoll_IntervalHoldsBackData(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	pub, _ := b.Advertise(testTopic)
	h, _ := b.Subscribe(testTopic)
	_ = b.SetInterval(h, 80*time.Millisecond)

	_ = pub.Publish(testMessage{Seq: 1})

	var msg testMessage
	if err := b.Copy(testTopic, h, &msg); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	_ = pub.Publish(testMessage{Seq: 2})

	fds := []PollFD{{Handle: h, Events: EventIn}}

	// Shorter than the interval: held back.
	n, err := b.Poll(context.Background(), fds, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected data to be held back, got %d ready", n)
	}

	// Longer than the interval: released without another publish.
	n, err = b.Poll(context.Background(), fds, time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected data once interval elapsed, got %d ready", n)
	}
}

func TestPoll_Errors(t *testing.T) {
	b := NewBroker()

	h, _ := b.Subscribe(testTopic)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	testCases := []struct {
		name string
		ctx  context.Context
		fds  []PollFD
		err  error
	}{
		{"empty set", context.Background(), nil, ErrInvalidArgument},
		{"bad handle", context.Background(), []PollFD{{Handle: 42, Events: EventIn}}, ErrBadHandle},
		{"cancelled context", cancelled, []PollFD{{Handle: h, Events: EventIn}}, ErrInterrupted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Poll(tc.ctx, tc.fds, 10*time.Millisecond)
			if !errors.Is(err, tc.err) {
				t.Errorf("Expected %v, got %v", tc.err, err)
			}
		})
	}

	_ = b.Close()

	if _, err := b.Poll(context.Background(), []PollFD{{Handle: h, Events: EventIn}}, 10*time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestPoll_BadHandleSetsNVal(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	fds := []PollFD{{Handle: 99, Events: EventIn}}
	if _, err := b.Poll(context.Background(), fds, 0); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("Expected ErrBadHandle, got %v", err)
	}
	if fds[0].REvents != EventNVal {
		t.Errorf("Expected EventNVal, got %b", fds[0].REvents)
	}
}

func TestPoll_InterruptedMidWait(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	h, _ := b.Subscribe(testTopic)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Poll(ctx, []PollFD{{Handle: h, Events: EventIn}}, time.Second)
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("Expected ErrInterrupted, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", err)
	}
}

func TestPoll_CloseWakesPoller(t *testing.T) {
	b := NewBroker()

	h, _ := b.Subscribe(testTopic)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = b.Close()
	}()

	_, err := b.Poll(context.Background(), []PollFD{{Handle: h, Events: EventIn}}, time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
