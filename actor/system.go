package actor

import (
	"math"
	"sync"
	"time"
)

// actorCell is the system's private bookkeeping record for one spawned
// actor: its mailbox, its current behavior, its timers, and the supervision
// linkage needed to react to a failure.
type actorCell struct {
	id        string
	ref       *localRef
	mailbox   *mailbox
	timers    *TimerScheduler
	factory   Factory
	behavior  Behavior
	parent    string
	watchers  []ActorRef

	mu    sync.Mutex
	alive bool
}

func (c *actorCell) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *actorCell) setAlive(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = v
}

// Factory builds a fresh Behavior instance, called once at spawn time and
// again on every restart so a restarted actor starts from clean state.
type Factory func() Behavior

// SystemConfig holds the pluggable ports and tuning an ActorSystem is built
// with.
type SystemConfig struct {
	Metrics             MetricsSink
	Trace               TraceSink
	Log                 LogSink
	DeadLetterCapacity  int
}

// SystemOption configures a SystemConfig starting from its defaults.
type SystemOption func(*SystemConfig)

// WithMetricsSink overrides the system's MetricsSink.
func WithMetricsSink(m MetricsSink) SystemOption {
	return func(c *SystemConfig) { c.Metrics = m }
}

// WithTraceSink overrides the system's TraceSink.
func WithTraceSink(t TraceSink) SystemOption {
	return func(c *SystemConfig) { c.Trace = t }
}

// WithLogSink overrides the system's LogSink.
func WithLogSink(l LogSink) SystemOption {
	return func(c *SystemConfig) { c.Log = l }
}

// WithDeadLetterCapacity overrides the dead-letter queue's retained-entry
// cap.
func WithDeadLetterCapacity(n int) SystemOption {
	return func(c *SystemConfig) { c.DeadLetterCapacity = n }
}

// SpawnOption configures an individual Spawn call.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	supervisorID  string
	parentID      string
	pool          int
	routeStrategy RoutingStrategy
}

// WithSupervision assigns the spawned actor to the named supervisor. The
// supervisor must already have been registered via RegisterSupervisor.
func WithSupervision(supervisorID string) SpawnOption {
	return func(c *spawnConfig) { c.supervisorID = supervisorID }
}

// WithParent records parentID as the spawned actor's parent, as reported by
// ParentOf. Escalation does not consult it; it follows the supervisor chain
// given to RegisterSupervisor.
func WithParent(parentID string) SpawnOption {
	return func(c *spawnConfig) { c.parentID = parentID }
}

// WithPool turns Spawn into a pool spawn: instead of one actor, count
// identically-behaving actors are spawned under ids derived from id, fronted
// by a router actor registered under id itself. The router is its own
// supervisor over the pool, always restarting a failed worker.
func WithPool(count int) SpawnOption {
	return func(c *spawnConfig) { c.pool = count }
}

// WithRoutingStrategy overrides a pool spawn's default round-robin routing.
// It has no effect unless combined with WithPool.
func WithRoutingStrategy(rs RoutingStrategy) SpawnOption {
	return func(c *spawnConfig) { c.routeStrategy = rs }
}

// ActorSystem is the runtime's entry point: it owns the dispatcher, the
// actor registry, the event bus, the dead-letter queue, and the supervision
// tree.
type ActorSystem struct {
	mu         sync.RWMutex
	cells      map[string]*actorCell
	routers    map[string]*Router
	supervisor map[string]*Supervisor
	cellSuper  map[string]string // actorID -> supervisorID
	shutDown   bool

	dispatcher *dispatcher
	Events     *EventBus
	DeadLetter *DeadLetterQueue

	metrics MetricsSink
	traceS  TraceSink
	logS    LogSink
}

// NewActorSystem creates a running ActorSystem. Its pump goroutine starts
// immediately.
func NewActorSystem(opts ...SystemOption) *ActorSystem {
	cfg := SystemConfig{
		Metrics: NewInMemoryMetricsSink(),
		Trace:   NewInMemoryTraceSink(10000),
		Log:     NewConsoleLogSink(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sys := &ActorSystem{
		cells:      make(map[string]*actorCell),
		routers:    make(map[string]*Router),
		supervisor: make(map[string]*Supervisor),
		cellSuper:  make(map[string]string),
		Events:     NewEventBus(),
		DeadLetter: NewDeadLetterQueue(cfg.DeadLetterCapacity),
		metrics:    cfg.Metrics,
		traceS:     cfg.Trace,
		logS:       cfg.Log,
	}
	sys.dispatcher = newDispatcher(sys)
	sys.dispatcher.start()
	return sys
}

// isShutDown reports whether Shutdown has already been called.
func (s *ActorSystem) isShutDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutDown
}

func (s *ActorSystem) trace(evt TraceEvent) {
	if s.traceS != nil {
		s.traceS.Record(evt)
	}
}

func (s *ActorSystem) logRecord(level LogLevel, actorID, msg string) {
	if s.logS != nil {
		s.logS.Record(LogRecord{Level: level, Message: msg, Timestamp: time.Now(), ActorID: actorID})
	}
}

// RegisterSupervisor adds a supervisor to the system's supervision tree.
// parentSupervisorID names the supervisor to escalate to if this
// supervisor's own strategy decides DecisionEscalate; an empty string means
// there is no grandparent, and escalation falls back to stop.
func (s *ActorSystem) RegisterSupervisor(sup *Supervisor, parentSupervisorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup.parent = parentSupervisorID
	s.supervisor[sup.ID] = sup
}

// Spawn creates a new actor from factory, registered under id, and returns
// its reference. Spawning under an id already in use fails with
// ErrIDCollision.
func (s *ActorSystem) Spawn(id string, factory Factory, opts ...SpawnOption) (ActorRef, error) {
	cfg := spawnConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if s.isShutDown() {
		return nil, ErrInvalidState("system is shut down")
	}

	if cfg.pool > 0 {
		return s.spawnPool(id, factory, cfg)
	}

	s.mu.Lock()
	if _, exists := s.cells[id]; exists {
		s.mu.Unlock()
		return nil, ErrIDCollision(id)
	}
	if _, exists := s.routers[id]; exists {
		s.mu.Unlock()
		return nil, ErrIDCollision(id)
	}

	cell := &actorCell{
		id:      id,
		mailbox: newMailbox(),
		factory: factory,
		parent:  cfg.parentID,
		alive:   true,
	}
	ref := &localRef{id: id, cell: cell, system: s}
	cell.ref = ref
	cell.timers = newTimerScheduler(s, cell)
	cell.behavior = factory()

	s.cells[id] = cell
	if cfg.supervisorID != "" {
		s.cellSuper[id] = cfg.supervisorID
		if sup, ok := s.supervisor[cfg.supervisorID]; ok {
			sup.addChild(id)
		}
	}
	s.mu.Unlock()

	s.metrics.Increment(metricActorsSpawned, 1, Tags{"actor": id})
	s.metrics.Gauge(metricActorsActive, float64(s.activeCount()), nil)

	ctx := &Context{self: ref, env: NewEnvelope(nil), system: s, cell: cell}
	if starter, ok := cell.behavior.(PreStarter); ok {
		if err := starter.PreStart(ctx); err != nil {
			s.Stop(id)
			return nil, ErrHandlerFailure(id, err)
		}
	}
	return ref, nil
}

// spawnPool implements the pool form of Spawn: it registers a router under
// id, backed by cfg.pool worker actors built from factory and supervised by
// a dedicated one-for-one, always-restart strategy so a failing worker comes
// back without taking its siblings down with it.
func (s *ActorSystem) spawnPool(id string, factory Factory, cfg spawnConfig) (ActorRef, error) {
	s.mu.Lock()
	if _, exists := s.cells[id]; exists {
		s.mu.Unlock()
		return nil, ErrIDCollision(id)
	}
	if _, exists := s.routers[id]; exists {
		s.mu.Unlock()
		return nil, ErrIDCollision(id)
	}
	s.mu.Unlock()

	strategy := NewOneForOneStrategy(math.MaxInt32, time.Hour, func(error) SupervisionDecision {
		return DecisionRestart
	})
	sup := NewSupervisor(id, strategy)
	s.RegisterSupervisor(sup, cfg.supervisorID)

	members := make([]ActorRef, 0, cfg.pool)
	for i := 0; i < cfg.pool; i++ {
		memberID := routerMemberID(id, i)
		ref, err := s.Spawn(memberID, factory, WithSupervision(id), WithParent(cfg.parentID))
		if err != nil {
			for _, m := range members {
				_ = s.Stop(m.ID())
			}
			s.mu.Lock()
			delete(s.supervisor, id)
			s.mu.Unlock()
			return nil, err
		}
		members = append(members, ref)
	}

	router := &Router{id: id, members: members, strategy: cfg.routeStrategy}

	s.mu.Lock()
	s.routers[id] = router
	s.mu.Unlock()

	return router, nil
}

func (s *ActorSystem) activeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.cells {
		if c.isAlive() {
			n++
		}
	}
	return n
}

// Watch registers watcher to receive a Terminated message when the actor
// identified by id stops. Watching an id that is not registered, including
// an actor that has already stopped, returns an ErrInvalidState error.
func (s *ActorSystem) Watch(id string, watcher ActorRef) error {
	if s.isShutDown() {
		return ErrInvalidState("system is shut down")
	}
	s.mu.RLock()
	cell, ok := s.cells[id]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidState("no such actor: " + id)
	}
	cell.mu.Lock()
	cell.watchers = append(cell.watchers, watcher)
	cell.mu.Unlock()
	return nil
}

// ParentOf returns the id recorded via WithParent at the time the actor
// identified by id was spawned, if any.
func (s *ActorSystem) ParentOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.cells[id]
	if !ok || cell.parent == "" {
		return "", false
	}
	return cell.parent, true
}

// Get looks up a previously spawned actor or router's reference by id.
func (s *ActorSystem) Get(id string) (ActorRef, bool) {
	if s.isShutDown() {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cell, ok := s.cells[id]; ok {
		return cell.ref, true
	}
	if router, ok := s.routers[id]; ok {
		return router, true
	}
	return nil, false
}

// Stop terminates the actor identified by id: its timers are cancelled, its
// event-bus subscriptions torn down, its mailbox closed and drained to the
// dead-letter queue, and every watcher notified with a Terminated message.
// Stopping a router pool stops every one of its workers. Stopping an unknown
// id posts a dead-letter entry noting the unknown recipient instead of
// silently doing nothing.
func (s *ActorSystem) Stop(id string) error {
	s.mu.Lock()
	if router, ok := s.routers[id]; ok {
		delete(s.routers, id)
		delete(s.supervisor, id)
		s.mu.Unlock()
		for _, m := range router.Members() {
			_ = s.Stop(m.ID())
		}
		return nil
	}

	cell, ok := s.cells[id]
	if !ok {
		s.mu.Unlock()
		s.routeToDeadLetter(NewEnvelope(nil), id, ErrInvalidState("stop: no such actor: "+id))
		return ErrInvalidState("no such actor: " + id)
	}
	delete(s.cells, id)
	supID, hadSup := s.cellSuper[id]
	delete(s.cellSuper, id)
	s.mu.Unlock()

	if hadSup {
		if sup, ok := s.supervisor[supID]; ok {
			sup.removeChild(id)
		}
	}

	cell.setAlive(false)
	cell.timers.cancelAll()
	s.Events.unsubscribeAll(id)

	ctx := &Context{self: cell.ref, env: NewEnvelope(nil), system: s, cell: cell}
	if stopper, ok := cell.behavior.(PostStopper); ok {
		if err := stopper.PostStop(ctx); err != nil {
			s.logRecord(LevelError, id, "PostStop failed: "+err.Error())
			s.metrics.Increment(metricActorsStopFail, 1, Tags{"actor": id})
		}
	}

	drained := cell.mailbox.close()
	for _, env := range drained {
		s.DeadLetter.add(DeadLetterEntry{
			Envelope: env, TargetID: id, Reason: ErrInvalidState("actor stopped"), At: time.Now(),
		})
		s.metrics.Increment(metricDeadLetters, 1, Tags{"actor": id})
	}

	for _, watcher := range cell.watchers {
		_ = watcher.Tell(Terminated{Actor: cell.ref})
	}

	s.metrics.Increment(metricActorsStopped, 1, Tags{"actor": id})
	s.metrics.Gauge(metricActorsActive, float64(s.activeCount()), nil)
	return nil
}

// Restart replaces the actor's behavior with a fresh instance from its
// original factory, preserving only its identity. Its timers are cancelled,
// its event-bus subscriptions torn down, and its mailbox drained as Stop
// drains it, though the mailbox stays open for new messages: any message
// still queued for the old instance is dropped to the dead-letter queue
// rather than silently handed to the new one, since the new behavior starts
// from clean state and has no context for it.
func (s *ActorSystem) Restart(id string) error {
	s.mu.RLock()
	cell, ok := s.cells[id]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidState("no such actor: " + id)
	}

	cell.timers.cancelAll()
	s.Events.unsubscribeAll(id)

	ctx := &Context{self: cell.ref, env: NewEnvelope(nil), system: s, cell: cell}
	if stopper, ok := cell.behavior.(PostStopper); ok {
		_ = stopper.PostStop(ctx)
	}

	drained := cell.mailbox.drainForRestart()
	for _, env := range drained {
		s.DeadLetter.add(DeadLetterEntry{
			Envelope: env, TargetID: id, Reason: ErrInvalidState("actor restarted"), At: time.Now(),
		})
		s.metrics.Increment(metricDeadLetters, 1, Tags{"actor": id})
	}

	cell.behavior = cell.factory()
	if starter, ok := cell.behavior.(PreStarter); ok {
		if err := starter.PreStart(ctx); err != nil {
			return ErrHandlerFailure(id, err)
		}
	}

	s.metrics.Increment(metricActorsRestarted, 1, Tags{"actor": id})
	return nil
}

// routeToDeadLetter records an envelope that could not be delivered.
func (s *ActorSystem) routeToDeadLetter(env *Envelope, targetID string, reason error) {
	s.DeadLetter.add(DeadLetterEntry{Envelope: env, TargetID: targetID, Reason: reason, At: time.Now()})
	s.metrics.Increment(metricDeadLetters, 1, Tags{"actor": targetID})
}

// handleFailure is invoked by the dispatcher whenever a Behavior.Receive
// call returns a non-nil error. It looks up the actor's supervisor (if any),
// asks its strategy for a decision, and applies that decision to the failed
// actor or, for all-for-one strategies, to every sibling as well.
func (s *ActorSystem) handleFailure(cell *actorCell, cause error) {
	s.metrics.Increment(metricActorsFailed, 1, Tags{"actor": cell.id})
	s.logRecord(LevelError, cell.id, "handler failure: "+cause.Error())

	Publish(s.Events, MonitoringEvent{Kind: "failed", ActorID: cell.id, Cause: cause})

	s.mu.RLock()
	supID, ok := s.cellSuper[cell.id]
	s.mu.RUnlock()
	if !ok {
		// No supervisor registered: default to restart-on-failure so a
		// single bad message cannot silently wedge the actor forever.
		_ = s.Restart(cell.id)
		return
	}

	sup, ok := s.supervisor[supID]
	if !ok {
		_ = s.Restart(cell.id)
		return
	}

	fc := FailureContext{ActorID: cell.id, Cause: cause, At: time.Now()}
	decision := sup.Strategy.Decide(fc)
	targets := []string{cell.id}
	if sup.Strategy.AppliesToSiblings() {
		targets = append(targets, sup.siblings(cell.id)...)
	}

	s.applyDecision(sup, decision, targets)
}

func (s *ActorSystem) applyDecision(sup *Supervisor, decision SupervisionDecision, targets []string) {
	switch decision {
	case DecisionResume:
		// No-op: leave the actor(s) running, mailbox backlog continues to
		// drain under existing state.
	case DecisionRestart:
		for _, id := range targets {
			_ = s.Restart(id)
		}
	case DecisionStop:
		for _, id := range targets {
			_ = s.Stop(id)
		}
	case DecisionEscalate:
		s.escalate(sup, targets)
	}
}

// escalate forwards a failure decision to sup's own parent supervisor. If
// sup has no parent, every target is stopped instead.
func (s *ActorSystem) escalate(sup *Supervisor, targets []string) {
	if sup.parent == "" {
		for _, id := range targets {
			_ = s.Stop(id)
		}
		return
	}
	parent, ok := s.supervisor[sup.parent]
	if !ok {
		for _, id := range targets {
			_ = s.Stop(id)
		}
		return
	}
	for _, id := range targets {
		fc := FailureContext{ActorID: id, Cause: ErrInvalidState("escalated"), At: time.Now()}
		decision := parent.Strategy.Decide(fc)
		s.applyDecision(parent, decision, []string{id})
	}
}

// Shutdown stops every currently registered actor and halts the dispatcher
// pump.
func (s *ActorSystem) Shutdown() {
	s.mu.Lock()
	s.shutDown = true
	ids := make([]string, 0, len(s.cells)+len(s.routers))
	for id := range s.cells {
		ids = append(ids, id)
	}
	for id := range s.routers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Stop(id)
	}
	s.dispatcher.stopPump()
	s.metrics.Increment(metricSystemShutdown, 1, nil)
}
