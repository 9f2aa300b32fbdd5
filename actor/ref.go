package actor

import "time"

// ActorRef is a lightweight, serializable-by-reference handle to an actor's
// mailbox. It is the only thing callers outside the runtime ever hold; the
// actual behavior, state, and mailbox stay private to the system.
type ActorRef interface {
	// ID returns the actor's stable identifier within its system.
	ID() string

	// Tell enqueues payload on the actor's mailbox and returns immediately.
	// It is the fire-and-forget primitive every other send builds on.
	Tell(payload any, opts ...EnvelopeOption) error

	// IsAlive reports whether the actor is still registered and running.
	IsAlive() bool
}

// localRef is the concrete ActorRef implementation for actors living in this
// process. Every ActorRef an ActorSystem hands out for a single actor is a
// *localRef; a pool spawn hands out a *Router instead.
type localRef struct {
	id     string
	cell   *actorCell
	system *ActorSystem
}

// ID implements ActorRef.
func (r *localRef) ID() string { return r.id }

// Tell implements ActorRef.
func (r *localRef) Tell(payload any, opts ...EnvelopeOption) error {
	if r.cell == nil || r.cell.mailbox == nil {
		return ErrUndeliverable(r.id)
	}
	env := NewEnvelope(payload, opts...)
	if err := r.cell.mailbox.enqueue(env); err != nil {
		r.system.routeToDeadLetter(env, r.id, err)
		return err
	}
	r.system.trace(TraceEvent{
		CorrelationID: env.CorrelationID(),
		EventName:     traceSent,
		ActorID:       r.id,
		Payload:       env.Payload(),
		Timestamp:     time.Now(),
	})
	r.system.metrics.Gauge(metricMailboxSize, float64(r.cell.mailbox.len()), Tags{"actor": r.id})
	r.system.dispatcher.notify(r.cell)
	return nil
}

// IsAlive implements ActorRef.
func (r *localRef) IsAlive() bool {
	if r.cell == nil {
		return false
	}
	return r.cell.isAlive()
}

// replyHandle is the ephemeral ActorRef used as an ask's reply-to address. It
// is single-use: the first (and only) Tell it ever receives completes the
// waiting Ask call; every subsequent Tell is silently dropped because the
// completion slot accepts only its first completion.
type replyHandle struct {
	id       string
	complete func(env *Envelope) bool
}

// ID implements ActorRef.
func (h *replyHandle) ID() string { return h.id }

// Tell implements ActorRef. It funnels env into the completion slot exactly
// once; the slot itself (see completionSlot) is what enforces single-use.
func (h *replyHandle) Tell(payload any, opts ...EnvelopeOption) error {
	env := NewEnvelope(payload, opts...)
	h.complete(env)
	return nil
}

// IsAlive implements ActorRef. A reply handle always reports true, even after
// its ask has completed or timed out; a Tell arriving after that point is
// dropped by the already-completed slot.
func (h *replyHandle) IsAlive() bool { return true }
