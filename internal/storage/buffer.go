package storage

import (
	"fmt"
	"sync"

	"github.com/roman-kulish/flight-sensors/internal/sensor"
)

type node struct {
	sample *sensor.SensorCombined
	next   *node
}

// SampleBuffer is a thread-safe buffer keeping samples in timestamp order
// until they are flushed to storage in batches. Samples arriving late are
// inserted in place.
type SampleBuffer struct {
	capacity   int // Maximum number of samples to store
	flushCount int // Number of samples to remove when buffer reaches capacity

	mu   sync.Mutex
	head *node
	tail *node
	size int
}

// NewSampleBuffer creates a new sample buffer.
// The buffer will store up to capacity samples and remove flushCount samples when full.
//
// Returns an error if parameters are invalid.
func NewSampleBuffer(capacity, flushCount int) (*SampleBuffer, error) {
	if capacity <= 0 || flushCount <= 0 || flushCount > capacity {
		return nil, fmt.Errorf("invalid buffer parameters: bufferCap=%d, toFlush=%d", capacity, flushCount)
	}
	return &SampleBuffer{
		capacity:   capacity,
		flushCount: flushCount,
	}, nil
}

// Insert adds a sample to the buffer keeping timestamp order. Samples with
// equal timestamps keep their insertion order.
func (sb *SampleBuffer) Insert(s *sensor.SensorCombined) error {
	if s == nil {
		return fmt.Errorf("cannot insert nil sample")
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	n := &node{sample: s}
	sb.size++

	switch {
	case sb.head == nil:
		sb.head, sb.tail = n, n
		return nil

	case !s.Timestamp.Before(sb.tail.sample.Timestamp):
		// Common case, samples arrive in order
		sb.tail.next = n
		sb.tail = n
		return nil

	case s.Timestamp.Before(sb.head.sample.Timestamp):
		n.next = sb.head
		sb.head = n
		return nil
	}

	current := sb.head
	for current.next != nil && !s.Timestamp.Before(current.next.sample.Timestamp) {
		current = current.next
	}
	n.next = current.next
	current.next = n
	return nil
}

// IsFull returns true if the buffer has reached its capacity.
func (sb *SampleBuffer) IsFull() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.size >= sb.capacity
}

// Flush removes and returns the oldest samples from the buffer.
// Returns nil if the buffer is empty.
func (sb *SampleBuffer) Flush() []*sensor.SensorCombined {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	count := sb.flushCount
	if sb.size > sb.capacity {
		count += sb.size - sb.capacity
	}
	return sb.take(min(count, sb.size))
}

// DrainAll removes and returns all samples from the buffer.
// Returns nil if the buffer is empty.
func (sb *SampleBuffer) DrainAll() []*sensor.SensorCombined {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.take(sb.size)
}

func (sb *SampleBuffer) take(count int) []*sensor.SensorCombined {
	if sb.head == nil || count == 0 {
		return nil
	}

	results := make([]*sensor.SensorCombined, 0, count)
	current := sb.head
	for i := 0; i < count && current != nil; i++ {
		results = append(results, current.sample)
		current = current.next
	}

	sb.head = current
	if sb.head == nil {
		sb.tail = nil
	}
	sb.size -= len(results)
	return results
}

// Size returns the current number of samples in the buffer.
func (sb *SampleBuffer) Size() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.size
}
