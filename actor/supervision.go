package actor

import (
	"sync"
	"time"
)

// SupervisionDecision is what a SupervisionStrategy tells the system to do
// about a failed actor.
type SupervisionDecision int

const (
	// DecisionResume leaves the actor running as-is; its mailbox backlog
	// continues to drain under the existing behavior and state.
	DecisionResume SupervisionDecision = iota

	// DecisionRestart replaces the actor's state by re-running PreStart on
	// a fresh behavior instance, preserving its identity. Messages still
	// queued for the old instance go to the dead-letter queue.
	DecisionRestart

	// DecisionStop terminates the actor permanently.
	DecisionStop

	// DecisionEscalate forwards the failure to the supervisor's own
	// parent. If there is no grandparent supervisor, the failure is
	// treated as DecisionStop.
	DecisionEscalate
)

// FailureContext describes one actor failure to a SupervisionStrategy.
type FailureContext struct {
	ActorID string
	Cause   error
	At      time.Time
}

// SupervisionStrategy decides how to react to a child's failure, and which
// siblings (if any) that reaction also applies to.
type SupervisionStrategy interface {
	// Decide returns the action to take for the failed actor.
	Decide(fc FailureContext) SupervisionDecision

	// AppliesToSiblings reports whether Decide's outcome should also be
	// applied to every other child under the same supervisor (all-for-one)
	// or just the failed one (one-for-one).
	AppliesToSiblings() bool
}

// retryWindow tracks bounded-retry bookkeeping for a single actor: a count
// that resets once Window has elapsed since the first failure in the
// current streak.
type retryWindow struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	maxRetries  int
	window      time.Duration
}

// recordFailure increments the retry counter, resetting it first if Window
// has elapsed since the streak began. It returns true if the actor is still
// within its retry budget.
func (w *retryWindow) recordFailure(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.windowStart.IsZero() || now.Sub(w.windowStart) > w.window {
		w.windowStart = now
		w.count = 0
	}
	w.count++
	return w.count <= w.maxRetries
}

// baseStrategy holds the fields and retry-window bookkeeping shared by
// OneForOneStrategy and AllForOneStrategy.
type baseStrategy struct {
	mu          sync.Mutex
	windows     map[string]*retryWindow
	maxRetries  int
	window      time.Duration
	decisionFor func(error) SupervisionDecision
}

func (s *baseStrategy) windowFor(actorID string) *retryWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[actorID]
	if !ok {
		w = &retryWindow{maxRetries: s.maxRetries, window: s.window}
		s.windows[actorID] = w
	}
	return w
}

func (s *baseStrategy) decide(fc FailureContext) SupervisionDecision {
	decision := DecisionRestart
	if s.decisionFor != nil {
		decision = s.decisionFor(fc.Cause)
	}
	if decision != DecisionRestart {
		return decision
	}
	if !s.windowFor(fc.ActorID).recordFailure(fc.At) {
		return DecisionStop
	}
	return DecisionRestart
}

// OneForOneStrategy restarts (bounded by MaxRetries per Window) only the
// child that failed; its siblings are left untouched.
type OneForOneStrategy struct {
	base *baseStrategy
}

// NewOneForOneStrategy creates a one-for-one strategy that restarts a failed
// child up to maxRetries times within window before giving up and stopping
// it. decisionFor, if non-nil, lets the caller classify a cause as
// Resume/Stop/Escalate up front; returning DecisionRestart (or passing nil)
// defers to the bounded-retry default.
func NewOneForOneStrategy(maxRetries int, window time.Duration, decisionFor func(error) SupervisionDecision) *OneForOneStrategy {
	return &OneForOneStrategy{base: &baseStrategy{
		windows:     make(map[string]*retryWindow),
		maxRetries:  maxRetries,
		window:      window,
		decisionFor: decisionFor,
	}}
}

// Decide implements SupervisionStrategy.
func (s *OneForOneStrategy) Decide(fc FailureContext) SupervisionDecision { return s.base.decide(fc) }

// AppliesToSiblings implements SupervisionStrategy.
func (s *OneForOneStrategy) AppliesToSiblings() bool { return false }

// AllForOneStrategy applies its decision to every child under the same
// supervisor whenever one of them fails.
type AllForOneStrategy struct {
	base *baseStrategy
}

// NewAllForOneStrategy is the all-for-one counterpart of
// NewOneForOneStrategy: the same decision and retry bookkeeping, but the
// system applies the resulting decision to every sibling, not just the
// actor that failed.
func NewAllForOneStrategy(maxRetries int, window time.Duration, decisionFor func(error) SupervisionDecision) *AllForOneStrategy {
	return &AllForOneStrategy{base: &baseStrategy{
		windows:     make(map[string]*retryWindow),
		maxRetries:  maxRetries,
		window:      window,
		decisionFor: decisionFor,
	}}
}

// Decide implements SupervisionStrategy.
func (s *AllForOneStrategy) Decide(fc FailureContext) SupervisionDecision { return s.base.decide(fc) }

// AppliesToSiblings implements SupervisionStrategy.
func (s *AllForOneStrategy) AppliesToSiblings() bool { return true }

// Supervisor owns a strategy and the set of child actor ids it governs. The
// ActorSystem consults the supervisor a failed actor was spawned under (via
// WithSupervision) to decide what happens next; if that supervisor's strategy escalates and no
// grandparent supervisor exists, the system stops the actor.
type Supervisor struct {
	mu       sync.Mutex
	ID       string
	Strategy SupervisionStrategy
	children map[string]bool
	parent   string
}

// NewSupervisor creates a supervisor identified by id, applying strategy to
// every child registered under it.
func NewSupervisor(id string, strategy SupervisionStrategy) *Supervisor {
	return &Supervisor{ID: id, Strategy: strategy, children: make(map[string]bool)}
}

func (s *Supervisor) addChild(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[actorID] = true
}

func (s *Supervisor) removeChild(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.children, actorID)
}

func (s *Supervisor) siblings(except string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.children))
	for id := range s.children {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}
