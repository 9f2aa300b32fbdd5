package actor

import (
	"strconv"
	"sync/atomic"
)

// RoutingStrategy picks which member of a Router's pool handles the next
// message.
type RoutingStrategy int

const (
	// RouteRoundRobin cycles through pool members in order.
	RouteRoundRobin RoutingStrategy = iota

	// RouteBroadcast sends every message to every pool member.
	RouteBroadcast
)

// Router is a fixed-size pool of identically-behaving actors addressed
// through a single ActorRef, mirroring the worker-pool pattern used to fan a
// single logical recipient out across several concurrently-runnable actors
// without the caller needing to pick one itself.
type Router struct {
	id       string
	members  []ActorRef
	strategy RoutingStrategy
	next     uint64
}

// SpawnRouter is a convenience wrapper around Spawn(id, factory,
// WithPool(count), WithRoutingStrategy(strategy), opts...): it spawns a
// supervised pool of count identical actors from factory under ids derived
// from id, fronted by a router actor registered under id itself and
// reachable afterwards via ActorSystem.Get(id).
func SpawnRouter(system *ActorSystem, id string, count int, factory Factory, strategy RoutingStrategy, opts ...SpawnOption) (*Router, error) {
	allOpts := append(append([]SpawnOption{}, opts...), WithPool(count), WithRoutingStrategy(strategy))
	ref, err := system.Spawn(id, factory, allOpts...)
	if err != nil {
		return nil, err
	}
	return ref.(*Router), nil
}

func routerMemberID(id string, idx int) string {
	return id + "#" + strconv.Itoa(idx)
}

// ID implements ActorRef. It returns the router's own id, not any member's.
func (r *Router) ID() string { return r.id }

// IsAlive implements ActorRef, reporting true if at least one pool member is
// still alive.
func (r *Router) IsAlive() bool {
	for _, m := range r.members {
		if m.IsAlive() {
			return true
		}
	}
	return false
}

// Tell implements ActorRef. Under RouteRoundRobin it delivers to exactly one
// member, advancing the cursor on every call (including failed ones, so a
// single stuck member does not get skipped forever). Under RouteBroadcast it
// delivers to every alive member and returns the first error encountered, if
// any.
func (r *Router) Tell(payload any, opts ...EnvelopeOption) error {
	if r.strategy == RouteBroadcast {
		var firstErr error
		for _, m := range r.members {
			if err := m.Tell(payload, opts...); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	n := len(r.members)
	if n == 0 {
		return ErrUndeliverable(r.id)
	}
	idx := atomic.AddUint64(&r.next, 1) - 1
	member := r.members[idx%uint64(n)]
	return member.Tell(payload, opts...)
}

// Members returns a copy of the router's pool member references.
func (r *Router) Members() []ActorRef {
	out := make([]ActorRef, len(r.members))
	copy(out, r.members)
	return out
}
