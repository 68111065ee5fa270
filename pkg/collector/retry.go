package collector

import (
	"time"
)

// retryManager holds failed batches between delivery attempts. It is owned
// by the collector's run loop, which processes all state transitions in
// arrival order, so it needs no locking of its own.
//
// A failed batch is either rescheduled with an incremented retry count or
// dropped once the count reaches the maximum. A dropped batch is
// permanently lost from the client's perspective; that is an explicit
// data-loss boundary, not a silent bug.
type retryManager struct {
	maxRetries int
	retryDelay time.Duration

	// waiting holds batches that failed (or were produced) while offline;
	// they are rescheduled on the next transition back online
	waiting []*Batch

	// ready holds batches whose backoff has elapsed; they are re-sent
	// ahead of any fresh batch to preserve enqueue order on the server
	ready []*Batch

	// scheduled counts batches whose backoff timer is still running;
	// they are not in waiting or ready but must still be delivered
	// before any fresh batch
	scheduled int
}

func newRetryManager(maxRetries int, retryDelay time.Duration) *retryManager {
	return &retryManager{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// backoff returns the linear re-send delay for a batch. Linear is simple
// and sufficient given the low batch volume of a single client.
func (m *retryManager) backoff(b *Batch) time.Duration {
	return m.retryDelay * time.Duration(b.RetryCount+1)
}

// exhausted reports whether a batch has used up its retries
func (m *retryManager) exhausted(b *Batch) bool {
	return b.RetryCount >= m.maxRetries
}

// hold parks a batch until the next online transition
func (m *retryManager) hold(b *Batch) {
	m.waiting = append(m.waiting, b)
}

// markScheduled records that a batch entered its backoff window
func (m *retryManager) markScheduled() {
	m.scheduled++
}

// markReady queues a batch whose backoff has elapsed
func (m *retryManager) markReady(b *Batch) {
	if m.scheduled > 0 {
		m.scheduled--
	}
	m.ready = append(m.ready, b)
}

// popReady removes and returns the oldest ready batch, or nil
func (m *retryManager) popReady() *Batch {
	if len(m.ready) == 0 {
		return nil
	}
	b := m.ready[0]
	m.ready = m.ready[1:]
	return b
}

// takeWaiting removes and returns all held batches
func (m *retryManager) takeWaiting() []*Batch {
	batches := m.waiting
	m.waiting = nil
	return batches
}

// takeReady removes and returns all ready batches
func (m *retryManager) takeReady() []*Batch {
	batches := m.ready
	m.ready = nil
	return batches
}

// pending returns the number of batches that still have to be delivered
// before a fresh batch may be sent
func (m *retryManager) pending() int {
	return len(m.waiting) + len(m.ready) + m.scheduled
}
