package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventQueueAddAndDrainOrder(t *testing.T) {
	q := NewEventQueue(10)

	assert.True(t, q.Add(Event{Path: "/a"}))
	assert.True(t, q.Add(Event{Path: "/b"}))
	assert.True(t, q.Add(Event{Path: "/c"}))
	assert.Equal(t, 3, q.Len())

	drained := q.Drain(2)
	assert.Equal(t, []string{"/a", "/b"}, paths(drained))
	assert.Equal(t, 1, q.Len())

	drained = q.Drain(5)
	assert.Equal(t, []string{"/c"}, paths(drained))
	assert.Equal(t, 0, q.Len())
}

func TestEventQueueCapacity(t *testing.T) {
	q := NewEventQueue(2)

	assert.True(t, q.Add(Event{Path: "/a"}))
	assert.True(t, q.Add(Event{Path: "/b"}))
	assert.False(t, q.Add(Event{Path: "/c"}))
	assert.Equal(t, 2, q.Len())

	// rejection leaves contents intact
	assert.Equal(t, []string{"/a", "/b"}, paths(q.Drain(2)))
}

func TestEventQueueDrainEmpty(t *testing.T) {
	q := NewEventQueue(2)
	assert.Nil(t, q.Drain(5))
	assert.Nil(t, q.Drain(0))
}

func paths(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Path)
	}
	return out
}
