package actor

import (
	"fmt"
	"sync"
	"time"
)

// dispatcher is the single cooperative pump that drives every actor's
// mailbox in an ActorSystem. There is exactly one dispatcher goroutine
// (run), but it never blocks on a handler: each scheduled message is handed
// off to its own "detached continuation" goroutine, and the pump only keeps
// track of which actors currently have one in flight. This is what lets the
// pump stay responsive to N actors at once while still guaranteeing that no
// actor ever has two Receive calls running concurrently.
type dispatcher struct {
	mu       sync.Mutex
	ready    []*actorCell
	queued   map[string]bool
	inFlight map[string]bool

	wake chan struct{}
	done chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	system *ActorSystem
}

func newDispatcher(system *ActorSystem) *dispatcher {
	return &dispatcher{
		queued:   make(map[string]bool),
		inFlight: make(map[string]bool),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
		system:   system,
	}
}

// start launches the pump goroutine.
func (d *dispatcher) start() {
	go d.run()
}

// stopPump signals the pump to exit and waits for any in-flight
// continuations to finish.
func (d *dispatcher) stopPump() {
	close(d.stop)
	<-d.done
	d.wg.Wait()
}

// notify schedules cell for processing if it is not already queued or
// in-flight. It is safe to call from any goroutine, including from within a
// detached continuation completing.
func (d *dispatcher) notify(cell *actorCell) {
	d.mu.Lock()
	id := cell.id
	if d.queued[id] || d.inFlight[id] {
		d.mu.Unlock()
		return
	}
	d.queued[id] = true
	d.ready = append(d.ready, cell)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// run is the pump's main loop: pop one ready actor at a time, mark it
// in-flight, and launch its continuation. Fairness comes from always
// popping from the front of `ready` and from a continuation re-enqueuing
// itself at the back (via notify) instead of draining its whole mailbox in
// one go.
func (d *dispatcher) run() {
	defer close(d.done)
	for {
		cell := d.popReady()
		if cell == nil {
			select {
			case <-d.wake:
				continue
			case <-d.stop:
				return
			}
		}
		d.dispatchOne(cell)

		select {
		case <-d.stop:
			return
		default:
		}
	}
}

// popReady removes the front cell from the ready queue and marks it
// in-flight in the same locked section, so there is never a window where a
// cell is neither queued nor in-flight. Without that, a concurrent notify()
// could re-admit the cell to ready before dispatchOne's continuation even
// starts, letting the pump launch two continuations for the same actor.
func (d *dispatcher) popReady() *actorCell {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.ready) == 0 {
		return nil
	}
	cell := d.ready[0]
	d.ready[0] = nil
	d.ready = d.ready[1:]
	delete(d.queued, cell.id)
	d.inFlight[cell.id] = true
	return cell
}

// dispatchOne pops a single envelope off cell's mailbox and runs it on a
// detached goroutine. cell is already marked in-flight by popReady. When the
// continuation finishes, the actor is released from in-flight and, if its
// mailbox still has work, re-notified so it rejoins the ready queue fairly
// rather than being starved or monopolizing the pump.
func (d *dispatcher) dispatchOne(cell *actorCell) {
	env, ok := cell.mailbox.dequeue()
	if !ok {
		d.mu.Lock()
		delete(d.inFlight, cell.id)
		d.mu.Unlock()
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runContinuation(cell, env)

		d.mu.Lock()
		delete(d.inFlight, cell.id)
		d.mu.Unlock()

		if cell.mailbox.len() > 0 && cell.isAlive() {
			d.notify(cell)
		}
	}()
}

// runContinuation executes one Behavior.Receive call for cell, recording
// metrics/traces and routing any returned error to the actor's supervisor.
func (d *dispatcher) runContinuation(cell *actorCell, env *Envelope) {
	start := time.Now()
	ctx := &Context{self: cell.ref, env: env, system: d.system, cell: cell}

	d.system.trace(TraceEvent{
		CorrelationID: env.CorrelationID(),
		EventName:     traceProcessed,
		ActorID:       cell.id,
		Payload:       env.Payload(),
		Timestamp:     time.Now(),
	})

	err := safeReceive(cell.behavior, ctx, env.Payload())

	elapsed := time.Since(start)
	d.system.metrics.Timing(metricMessagesProcDur, elapsed, Tags{"actor": cell.id})
	d.system.metrics.Increment(metricMessagesProc, 1, Tags{"actor": cell.id})

	if err != nil {
		d.system.handleFailure(cell, err)
	}
}

// safeReceive recovers a panicking handler and converts it into a handler
// failure error, so a single misbehaving actor cannot take down the pump
// goroutine.
func safeReceive(b Behavior, ctx *Context, msg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrHandlerFailure(ctx.self.ID(), panicError{r})
		}
	}()
	return b.Receive(ctx, msg)
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if e, ok := p.v.(error); ok {
		return e.Error()
	}
	return fmt.Sprintf("panic: %v", p.v)
}
