package actor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BaseMessage is a helper that message types can embed to satisfy the
// Message interface's unexported marker method. Embedding it is the
// idiomatic way to declare "this type is an actor message."
type BaseMessage struct{}

// messageMarker implements the sealed interface marker.
func (BaseMessage) messageMarker() {}

// Message is a sealed interface for actor messages that want routing and
// trace friendly type names. It is not required of every envelope payload
// (payloads are arbitrary, per the envelope's own contract), but actors that
// dispatch on a tagged sum type of requests should define their messages
// against it. payloadTypeName reports MessageType for a payload that
// implements it; the dispatcher and the trace events it records carry the
// raw payload and do not consult MessageType.
type Message interface {
	// messageMarker is the unexported method that seals the interface.
	messageMarker()

	// MessageType returns a stable name for the message, used for
	// routing, filtering, and tracing.
	MessageType() string
}

// payloadTypeName returns the best available name for a payload: its
// MessageType if it implements Message, otherwise its Go type name.
func payloadTypeName(payload any) string {
	if m, ok := payload.(Message); ok {
		return m.MessageType()
	}
	return fmt.Sprintf("%T", payload)
}

// Terminated is delivered to every watcher of an actor once that actor has
// stopped.
type Terminated struct {
	BaseMessage

	// Actor is a reference to the actor that stopped.
	Actor ActorRef
}

// MessageType implements Message.
func (Terminated) MessageType() string { return "Terminated" }

// Envelope is the immutable wrapper that carries a payload between actors.
// Its correlation id is generated once, at construction, and never changes
// across reads or across copies made via WithNewSender.
type Envelope struct {
	payload       any
	correlationID string
	createdAt     time.Time
	metadata      map[string]any
	sender        fn.Option[ActorRef]
	replyTo       fn.Option[ActorRef]
}

// EnvelopeOption configures an Envelope at construction time.
type EnvelopeOption func(*Envelope)

// WithSender attaches a sender reference to the envelope.
func WithSender(ref ActorRef) EnvelopeOption {
	return func(e *Envelope) {
		if ref != nil {
			e.sender = fn.Some(ref)
		}
	}
}

// WithReplyTo attaches a reply-to reference to the envelope, distinct from
// the sender (e.g. when a proxy relays a message on someone else's behalf).
func WithReplyTo(ref ActorRef) EnvelopeOption {
	return func(e *Envelope) {
		if ref != nil {
			e.replyTo = fn.Some(ref)
		}
	}
}

// WithCorrelationID overrides the auto-generated correlation id, used when
// threading one logical request through several hops.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *Envelope) { e.correlationID = id }
}

// WithMetadata attaches a single metadata key/value pair to the envelope.
func WithMetadata(key string, value any) EnvelopeOption {
	return func(e *Envelope) {
		if e.metadata == nil {
			e.metadata = make(map[string]any, 1)
		}
		e.metadata[key] = value
	}
}

// NewEnvelope constructs an Envelope around payload, filling the correlation
// id and creation timestamp unless overridden by opts.
func NewEnvelope(payload any, opts ...EnvelopeOption) *Envelope {
	env := &Envelope{
		payload:       payload,
		correlationID: uuid.NewString(),
		createdAt:     time.Now(),
		sender:        fn.None[ActorRef](),
		replyTo:       fn.None[ActorRef](),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// Payload returns the envelope's payload.
func (e *Envelope) Payload() any { return e.payload }

// CorrelationID returns the envelope's correlation id. It is identical
// across every read, and across every envelope derived from this one via
// WithNewSender.
func (e *Envelope) CorrelationID() string { return e.correlationID }

// CreatedAt returns the envelope's creation timestamp.
func (e *Envelope) CreatedAt() time.Time { return e.createdAt }

// Sender returns the envelope's sender, if any.
func (e *Envelope) Sender() (ActorRef, bool) {
	if e.sender.IsSome() {
		return e.sender.UnwrapOr(nil), true
	}
	return nil, false
}

// ReplyTo returns the envelope's reply-to reference, if any.
func (e *Envelope) ReplyTo() (ActorRef, bool) {
	if e.replyTo.IsSome() {
		return e.replyTo.UnwrapOr(nil), true
	}
	return nil, false
}

// Metadata returns a copy of the envelope's metadata map.
func (e *Envelope) Metadata() map[string]any {
	if len(e.metadata) == 0 {
		return nil
	}
	cp := make(map[string]any, len(e.metadata))
	for k, v := range e.metadata {
		cp[k] = v
	}
	return cp
}

// WithNewSender returns a copy of the envelope with a different sender. The
// correlation id, creation timestamp, metadata, and reply-to are carried
// over unchanged, and the original envelope is not mutated.
func (e *Envelope) WithNewSender(sender ActorRef) *Envelope {
	cp := &Envelope{
		payload:       e.payload,
		correlationID: e.correlationID,
		createdAt:     e.createdAt,
		metadata:      e.metadata,
		replyTo:       e.replyTo,
		sender:        fn.None[ActorRef](),
	}
	if sender != nil {
		cp.sender = fn.Some(sender)
	}
	return cp
}
