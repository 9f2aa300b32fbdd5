// Package actor implements an in-process, single-pump actor runtime.
//
// Actors are isolated units of state that exchange immutable envelopes
// through per-actor mailboxes. A single cooperative dispatcher drives every
// actor's mailbox; handlers never block the pump directly because the
// dispatcher launches each one as a detached continuation and only holds an
// actor "in flight" until that continuation resolves. This is what lets an
// actor issue an Ask against itself (or a cycle of actors) without
// deadlocking the pump.
//
// The runtime is local-only: there is no wire format, no persistence, and no
// pre-emption of a running handler. See ActorSystem for the entry point.
package actor
