package actor

// Context is handed to a Behavior on every Receive call. It is the actor's
// only window onto the system: its own reference, the envelope's sender (if
// any), and the scheduling primitives (timers, child spawning) scoped to its
// own lifetime.
type Context struct {
	self   ActorRef
	env    *Envelope
	system *ActorSystem
	cell   *actorCell
}

// Self returns the actor's own reference.
func (c *Context) Self() ActorRef { return c.self }

// Sender returns the sender of the envelope currently being handled, if the
// sender set one.
func (c *Context) Sender() (ActorRef, bool) { return c.env.Sender() }

// Envelope returns the full envelope currently being handled, including its
// correlation id and metadata.
func (c *Context) Envelope() *Envelope { return c.env }

// System returns the owning ActorSystem, for spawning children or looking up
// peers by id.
func (c *Context) System() *ActorSystem { return c.system }

// Timers returns the timer scheduler bound to this actor's lifetime. Timers
// registered through it are cancelled automatically on restart or stop.
func (c *Context) Timers() *TimerScheduler { return c.cell.timers }

// Behavior is the user-supplied message handler an actor is built from. It
// is invoked with mutual exclusion per actor: the dispatcher never starts a
// second Receive for the same actor while one is still running, regardless
// of how many goroutines the handler itself spawns internally.
type Behavior interface {
	// Receive handles a single message. Returning a non-nil error marks the
	// message as a handler failure, which the owning supervisor decides how
	// to react to.
	Receive(ctx *Context, msg any) error
}

// PreStarter is an optional extension a Behavior can implement to run setup
// logic once, before the actor accepts its first message.
type PreStarter interface {
	PreStart(ctx *Context) error
}

// PostStopper is an optional extension a Behavior can implement to run
// cleanup logic once, after the actor has processed its last message and
// before its mailbox is disposed of.
type PostStopper interface {
	PostStop(ctx *Context) error
}

// FunctionBehavior adapts a plain function into a Behavior, so an actor can
// be built without hand-rolling a type with a Receive method.
type FunctionBehavior struct {
	fn func(ctx *Context, msg any) error
}

// NewFunctionBehavior wraps fn as a Behavior.
func NewFunctionBehavior(fn func(ctx *Context, msg any) error) *FunctionBehavior {
	return &FunctionBehavior{fn: fn}
}

// Receive implements Behavior.
func (f *FunctionBehavior) Receive(ctx *Context, msg any) error {
	return f.fn(ctx, msg)
}
