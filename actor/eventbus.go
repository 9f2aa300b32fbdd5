package actor

import (
	"fmt"
	"sync"
)

// MonitoringEvent is the envelope type the system publishes about an actor's
// lifecycle. The system publishes one, with Kind "failed", each time a
// handler fails; spawns, restarts, and stops are not published. It is just
// an ordinary message type; subscribers receive it through the same
// Subscribe[T] mechanism as any other event.
type MonitoringEvent struct {
	BaseMessage

	Kind    string
	ActorID string
	Cause   error
}

// MessageType implements Message.
func (MonitoringEvent) MessageType() string { return "MonitoringEvent" }

// eventSubscriber is the type-erased form every Subscribe[T] call registers
// with the bus. Delivery happens via ref.Tell, not a closure: the event
// reaches the subscriber's own mailbox and is processed by its own Receive,
// under the same per-actor in-flight guarantee as every other message.
type eventSubscriber struct {
	id      uint64
	actorID string
	ref     ActorRef
}

// EventBus is a type-routed publish/subscribe bus. Routing is by exact
// concrete type only: subscribing to a base type does not receive events
// published as a type that merely embeds it. Every actor's subscriptions are
// torn down automatically when that actor stops, before its mailbox is
// disposed of.
type EventBus struct {
	mu          sync.RWMutex
	byType      map[string][]*eventSubscriber
	byActor     map[string]map[string][]uint64
	nextID      uint64
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		byType:  make(map[string][]*eventSubscriber),
		byActor: make(map[string]map[string][]uint64),
	}
}

func typeKeyOf[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// Subscribe registers ref to receive every event of exact type T published
// from this point forward, delivered as a Tell to ref's own mailbox so the
// event is handled inside ref's normal Receive, serialized with everything
// else it is sent. Subscribing the same actor to the same type a second time
// is a no-op; it does not create a duplicate delivery.
func Subscribe[T any](bus *EventBus, ref ActorRef) {
	key := typeKeyOf[T]()

	bus.mu.Lock()
	defer bus.mu.Unlock()

	actorTypes := bus.byActor[ref.ID()]
	if actorTypes == nil {
		actorTypes = make(map[string][]uint64)
		bus.byActor[ref.ID()] = actorTypes
	}
	if len(actorTypes[key]) > 0 {
		// Already subscribed to this exact type; idempotent no-op.
		return
	}

	bus.nextID++
	sub := &eventSubscriber{id: bus.nextID, actorID: ref.ID(), ref: ref}
	bus.byType[key] = append(bus.byType[key], sub)
	actorTypes[key] = append(actorTypes[key], sub.id)
}

// Unsubscribe removes ref's subscription to exact type T, if any.
func Unsubscribe[T any](bus *EventBus, ref ActorRef) {
	key := typeKeyOf[T]()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.removeLocked(ref.ID(), key)
}

// Publish tells every current subscriber of event's exact concrete type T,
// in subscription order. Each subscriber receives event through its own
// mailbox and processes it on its own turn through the dispatcher; Publish
// itself does not wait for any subscriber to handle it.
func Publish[T any](bus *EventBus, event T) {
	key := typeKeyOf[T]()

	bus.mu.RLock()
	subs := make([]*eventSubscriber, len(bus.byType[key]))
	copy(subs, bus.byType[key])
	bus.mu.RUnlock()

	for _, sub := range subs {
		_ = sub.ref.Tell(event)
	}
}

func (b *EventBus) removeLocked(actorID, key string) {
	actorTypes := b.byActor[actorID]
	if actorTypes == nil {
		return
	}
	ids := actorTypes[key]
	if len(ids) == 0 {
		return
	}
	idSet := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	remaining := b.byType[key][:0]
	for _, sub := range b.byType[key] {
		if !idSet[sub.id] {
			remaining = append(remaining, sub)
		}
	}
	b.byType[key] = remaining
	delete(actorTypes, key)
	if len(actorTypes) == 0 {
		delete(b.byActor, actorID)
	}
}

// unsubscribeAll tears down every subscription belonging to actorID. The
// ActorSystem calls this as part of stopping an actor, before its mailbox is
// disposed of.
func (b *EventBus) unsubscribeAll(actorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	actorTypes := b.byActor[actorID]
	for key := range actorTypes {
		b.removeLocked(actorID, key)
	}
}
