package collector

import (
	"sync"
)

// EventQueue is an ordered, capacity-bounded buffer of pending events for
// one collector instance. The bound keeps memory flat when nothing ever
// flushes (an abandoned instance, a backgrounded page).
type EventQueue struct {
	mu      sync.Mutex
	events  []Event
	maxSize int
}

// NewEventQueue creates a queue holding at most maxSize events
func NewEventQueue(maxSize int) *EventQueue {
	return &EventQueue{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an event. It returns false without mutating the queue when
// the queue is at capacity; the caller decides whether to drop silently or
// surface a warning.
func (q *EventQueue) Add(event Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) >= q.maxSize {
		return false
	}
	q.events = append(q.events, event)
	return true
}

// Drain atomically removes and returns up to n oldest events in arrival
// order. Order matters for correct page-view sequencing in reports.
func (q *EventQueue) Drain(n int) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.events) {
		n = len(q.events)
	}
	if n <= 0 {
		return nil
	}

	drained := make([]Event, n)
	copy(drained, q.events[:n])
	q.events = append(q.events[:0], q.events[n:]...)
	return drained
}

// Len returns the number of queued events
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
