package actor

import (
	"sync"
)

// mailbox is a per-actor unbounded FIFO queue of envelopes. It is deliberately
// simple: the fairness and concurrency guarantees live in the dispatcher, not
// here. A mailbox's only job is strict enqueue-order delivery and a clean
// shutdown/drain story for the dead-letter queue.
type mailbox struct {
	mu     sync.Mutex
	queue  []*Envelope
	closed bool
}

// newMailbox allocates an empty mailbox.
func newMailbox() *mailbox {
	return &mailbox{queue: make([]*Envelope, 0, 8)}
}

// enqueue appends env to the tail of the queue. It fails once the mailbox
// has been closed, which happens when its owning actor stops.
func (m *mailbox) enqueue(env *Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUndeliverable("mailbox closed")
	}
	m.queue = append(m.queue, env)
	return nil
}

// dequeue pops the head envelope, if any.
func (m *mailbox) dequeue() (*Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	env := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return env, true
}

// len reports the number of envelopes currently queued.
func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// close marks the mailbox closed to further enqueues and returns every
// envelope still queued, so the caller can route them to the dead-letter
// queue.
func (m *mailbox) close() []*Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	drained := m.queue
	m.queue = nil
	return drained
}

// drainForRestart empties the queue without closing the mailbox to future
// enqueues, returning whatever was queued so the caller can route it to the
// dead-letter queue. Used when an actor restarts in place: its identity and
// mailbox object survive, but in-flight messages addressed to the old
// behavior instance must not silently carry over to the new one.
func (m *mailbox) drainForRestart() []*Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.queue
	m.queue = make([]*Envelope, 0, 8)
	return drained
}
