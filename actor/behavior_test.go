package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// lifecycleBehavior records PreStart/PostStop invocations and the Context
// each one was handed, so tests can assert on Self()/System()/Timers().
type lifecycleBehavior struct {
	preStarted  bool
	postStopped bool
	preErr      error
	postErr     error
	lastCtx     *Context
}

func (b *lifecycleBehavior) Receive(ctx *Context, msg any) error {
	b.lastCtx = ctx
	return nil
}

func (b *lifecycleBehavior) PreStart(ctx *Context) error {
	b.preStarted = true
	b.lastCtx = ctx
	return b.preErr
}

func (b *lifecycleBehavior) PostStop(ctx *Context) error {
	b.postStopped = true
	return b.postErr
}

// TestPreStartRunsBeforeFirstMessage covers the PreStarter optional
// extension: it runs once at spawn time, before any Receive call.
func TestPreStartRunsBeforeFirstMessage(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	b := &lifecycleBehavior{}
	ref, err := sys.Spawn("lifecycle", func() Behavior { return b })
	require.NoError(t, err)

	require.True(t, b.preStarted)
	require.Equal(t, ref, b.lastCtx.Self())
	require.Same(t, sys, b.lastCtx.System())
	require.NotNil(t, b.lastCtx.Timers())
}

// TestPostStopRunsOnStop covers the PostStopper optional extension.
func TestPostStopRunsOnStop(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	b := &lifecycleBehavior{}
	_, err := sys.Spawn("lifecycle", func() Behavior { return b })
	require.NoError(t, err)

	require.NoError(t, sys.Stop("lifecycle"))
	require.True(t, b.postStopped)
}

// TestPostStopRunsOnRestart covers that a restart cycles PostStop then
// PreStart against the freshly rebuilt behavior instance.
func TestPostStopRunsOnRestart(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	var built []*lifecycleBehavior
	factory := func() Behavior {
		b := &lifecycleBehavior{}
		built = append(built, b)
		return b
	}

	_, err := sys.Spawn("lifecycle", factory)
	require.NoError(t, err)
	require.Len(t, built, 1)

	require.NoError(t, sys.Restart("lifecycle"))

	require.Len(t, built, 2)
	require.True(t, built[0].postStopped)
	require.True(t, built[1].preStarted)
}

// TestContextSenderReflectsEnvelope covers Context.Sender/Envelope: the
// handler sees whichever sender the caller attached to the envelope.
func TestContextSenderReflectsEnvelope(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	b := &lifecycleBehavior{}
	ref, err := sys.Spawn("lifecycle", func() Behavior { return b })
	require.NoError(t, err)

	senderRef := &localRef{id: "caller"}
	require.NoError(t, ref.Tell("hello", WithSender(senderRef)))

	require.Eventually(t, func() bool {
		return b.lastCtx != nil && b.lastCtx.Envelope().Payload() == "hello"
	}, time.Second, time.Millisecond)

	sender, ok := b.lastCtx.Sender()
	require.True(t, ok)
	require.Equal(t, senderRef, sender)
}

// TestFunctionBehaviorDelegates covers the function-adapter convenience.
func TestFunctionBehaviorDelegates(t *testing.T) {
	t.Parallel()

	called := false
	fb := NewFunctionBehavior(func(ctx *Context, msg any) error {
		called = true
		return nil
	})

	require.NoError(t, fb.Receive(nil, "x"))
	require.True(t, called)
}

// TestPreStartFailurePreventsSpawn covers that a failing PreStart surfaces
// to the caller instead of leaving a half-initialized actor registered.
func TestPreStartFailurePreventsSpawn(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	b := &lifecycleBehavior{preErr: errors.New("init failed")}
	_, err := sys.Spawn("broken", func() Behavior { return b })
	require.Error(t, err)

	_, ok := sys.Get("broken")
	require.False(t, ok)
}
