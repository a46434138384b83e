package uorb

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const defaultMaxSubscriptions = 256

// WithLogger sets the logger for the broker
func WithLogger(logger *slog.Logger) func(*Broker) {
	return func(b *Broker) {
		b.logger = logger.With(slog.String("component", "uorb"))
	}
}

// WithMaxSubscriptions limits the number of live subscriptions. Subscribe
// fails with ErrTooManySubscriptions once the limit is reached.
func WithMaxSubscriptions(n int) func(*Broker) {
	return func(b *Broker) {
		b.maxSubs = n
	}
}

type topicNode struct {
	meta       Metadata
	advertised bool

	payload    []byte
	generation uint64 // incremented on every publish, 0 until the first one
	published  time.Time

	waiters map[chan struct{}]struct{}
}

func (t *topicNode) notify() {
	for w := range t.waiters {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

type subscription struct {
	handle Handle
	topic  *topicNode

	interval   time.Duration
	generation uint64 // generation of the last copied message
	lastCopy   time.Time
}

// pending reports whether the subscription has unread data that may be
// delivered now. When unread data is held back by the interval, the remaining
// wait is returned instead.
func (s *subscription) pending(now time.Time) (bool, time.Duration) {
	if s.topic.generation == s.generation {
		return false, 0
	}
	if s.interval > 0 && !s.lastCopy.IsZero() {
		if elapsed := now.Sub(s.lastCopy); elapsed < s.interval {
			return false, s.interval - elapsed
		}
	}
	return true, 0
}

// Broker is an in-process topic broker. It is safe for concurrent use:
// publishers typically run in their own goroutines while a subscriber polls.
type Broker struct {
	mu         sync.Mutex
	topics     map[string]*topicNode
	subs       map[Handle]*subscription
	nextHandle Handle
	maxSubs    int

	closed bool
	done   chan struct{}

	logger *slog.Logger
}

// NewBroker creates a new Broker with a discard logger
func NewBroker(options ...func(*Broker)) *Broker {
	b := Broker{
		topics:  make(map[string]*topicNode),
		subs:    make(map[Handle]*subscription),
		maxSubs: defaultMaxSubscriptions,
		done:    make(chan struct{}),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// topic returns the node for meta, creating it if needed. Must be called with b.mu held.
func (b *Broker) topic(meta Metadata) *topicNode {
	t, ok := b.topics[meta.Name]
	if !ok {
		t = &topicNode{meta: meta, waiters: make(map[chan struct{}]struct{})}
		b.topics[meta.Name] = t
	}
	return t
}

// Advertise registers a topic for publishing and returns its Publisher.
// Advertising the same topic twice returns publishers for the same node.
func (b *Broker) Advertise(meta Metadata) (*Publisher, error) {
	if meta.Name == "" {
		return nil, fmt.Errorf("%w: empty topic name", ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	t := b.topic(meta)
	if !t.advertised {
		t.advertised = true
		b.logger.Debug("topic advertised", slog.String("topic", meta.Name))
	}

	return &Publisher{broker: b, topic: t}, nil
}

// Subscribe creates a subscription to meta. The topic does not need to be
// advertised yet; data published before the call is reported as new.
func (b *Broker) Subscribe(meta Metadata) (Handle, error) {
	if meta.Name == "" {
		return 0, fmt.Errorf("%w: empty topic name", ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.maxSubs > 0 && len(b.subs) >= b.maxSubs {
		return 0, fmt.Errorf("%w: limit is %d", ErrTooManySubscriptions, b.maxSubs)
	}

	b.nextHandle++
	s := &subscription{handle: b.nextHandle, topic: b.topic(meta)}
	b.subs[s.handle] = s

	b.logger.Debug("subscribed", slog.String("topic", meta.Name), slog.Int("handle", int(s.handle)))

	return s.handle, nil
}

// Unsubscribe releases the subscription. The handle becomes invalid.
func (b *Broker) Unsubscribe(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[h]
	if !ok {
		return ErrBadHandle
	}
	delete(b.subs, h)

	b.logger.Debug("unsubscribed", slog.String("topic", s.topic.meta.Name), slog.Int("handle", int(h)))

	return nil
}

// SetInterval sets the minimum time between two messages delivered on the
// handle. Messages published faster than that are coalesced; the latest one
// wins. A non-positive interval disables the limit.
func (b *Broker) SetInterval(h Handle, interval time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[h]
	if !ok {
		return ErrBadHandle
	}
	s.interval = max(interval, 0)

	return nil
}

// Updated reports whether the subscription has data that a Copy would deliver now.
func (b *Broker) Updated(h Handle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[h]
	if !ok {
		return false, ErrBadHandle
	}

	ready, _ := s.pending(time.Now())
	return ready, nil
}

// Copy decodes the latest message published on meta into dst and marks it as
// read for the subscription h.
func (b *Broker) Copy(meta Metadata, h Handle, dst any) error {
	b.mu.Lock()

	s, ok := b.subs[h]
	if !ok {
		b.mu.Unlock()
		return ErrBadHandle
	}
	if s.topic.meta.Name != meta.Name {
		b.mu.Unlock()
		return fmt.Errorf("%w: subscribed to '%s', got '%s'", ErrTopicMismatch, s.topic.meta.Name, meta.Name)
	}
	if s.topic.generation == 0 {
		b.mu.Unlock()
		return ErrNoData
	}

	payload := s.topic.payload // replaced, never mutated, on publish
	generation := s.topic.generation

	b.mu.Unlock()

	if err := decode(payload, dst); err != nil {
		return fmt.Errorf("decoding '%s' message: %w", meta.Name, err)
	}

	// A message that failed to decode stays unread.
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[h] == s && s.generation < generation {
		s.generation = generation
		s.lastCopy = time.Now()
	}
	return nil
}

// Close releases all subscriptions and wakes any pending Poll with ErrClosed.
// It is safe to call Close multiple times.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	clear(b.subs)
	close(b.done)

	return nil
}

// Publisher publishes messages on a single advertised topic.
type Publisher struct {
	broker *Broker
	topic  *topicNode
}

// Topic returns the metadata of the topic the publisher writes to.
func (p *Publisher) Topic() Metadata {
	return p.topic.meta
}

// Publish replaces the latest message of the topic and wakes pollers.
func (p *Publisher) Publish(msg any) error {
	data, err := encode(msg)
	if err != nil {
		return fmt.Errorf("encoding '%s' message: %w", p.topic.meta.Name, err)
	}

	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()

	if p.broker.closed {
		return ErrClosed
	}

	p.topic.payload = data
	p.topic.generation++
	p.topic.published = time.Now()
	p.topic.notify()

	return nil
}
