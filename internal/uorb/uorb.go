// Package uorb implements a small in-process publish/subscribe broker modelled
// on the micro object request broker found on flight controllers. Topics hold
// only the latest published message; subscribers poll for updates, optionally
// rate limited, and copy the latest message out on demand.
package uorb

import "errors"

const (
	// EventIn marks interest in (or availability of) new topic data.
	EventIn Event = 1 << iota

	// EventNVal is set in PollFD.REvents when the handle is not a valid subscription.
	EventNVal
)

var (
	// ErrClosed is returned by every operation on a closed broker.
	ErrClosed = errors.New("broker closed")

	// ErrBadHandle is returned when a handle does not refer to a live subscription.
	ErrBadHandle = errors.New("bad subscription handle")

	// ErrInvalidArgument is returned for malformed requests, e.g. an empty poll set.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInterrupted is returned by Poll when the caller's context ends mid-wait.
	ErrInterrupted = errors.New("interrupted")

	// ErrNoData is returned by Copy when nothing was published on the topic yet.
	ErrNoData = errors.New("no data published")

	// ErrTopicMismatch is returned by Copy when the topic does not match the subscription.
	ErrTopicMismatch = errors.New("topic does not match subscription")

	// ErrTooManySubscriptions is returned by Subscribe once the subscription limit is reached.
	ErrTooManySubscriptions = errors.New("too many subscriptions")
)

// Event is a bit mask of poll events.
type Event uint16

// Handle is an opaque subscription handle. Zero is never a valid handle.
type Handle int

// Metadata identifies a topic.
type Metadata struct {
	Name string
}

func (m Metadata) String() string {
	return m.Name
}

// PollFD is a single entry of the set passed to Broker.Poll.
type PollFD struct {
	Handle  Handle // Subscription to watch
	Events  Event  // Requested events
	REvents Event  // Returned events, set by Poll
}
