package actor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingBehavior appends every payload it receives, under a lock, and
// optionally sleeps to simulate slow handlers. It also tracks the high-water
// mark of concurrently-running Receive calls for the same actor, which is
// how TestAtMostOneHandlerInFlight verifies invariant 2.
type recordingBehavior struct {
	mu       sync.Mutex
	seen     []any
	sleep    time.Duration
	inFlight int32
	maxSeen  int32
}

func (b *recordingBehavior) Receive(ctx *Context, msg any) error {
	cur := atomic.AddInt32(&b.inFlight, 1)
	for {
		max := atomic.LoadInt32(&b.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&b.maxSeen, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&b.inFlight, -1)

	if b.sleep > 0 {
		time.Sleep(b.sleep)
	}

	b.mu.Lock()
	b.seen = append(b.seen, msg)
	b.mu.Unlock()
	return nil
}

// TestAtMostOneHandlerInFlight is invariant 2: even with many messages sent
// rapidly to one actor, the dispatcher never runs two Receive calls for it
// concurrently.
func TestAtMostOneHandlerInFlight(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	behavior := &recordingBehavior{sleep: 2 * time.Millisecond}
	ref, err := sys.Spawn("worker", func() Behavior { return behavior })
	require.NoError(t, err)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, ref.Tell(i))
	}

	require.Eventually(t, func() bool {
		behavior.mu.Lock()
		defer behavior.mu.Unlock()
		return len(behavior.seen) == n
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&behavior.maxSeen))

	behavior.mu.Lock()
	defer behavior.mu.Unlock()
	for i, v := range behavior.seen {
		require.Equal(t, i, v)
	}
}

// TestDispatcherFairnessAcrossActors ensures one busy actor does not starve
// another: the quiet actor's single message should complete in roughly
// bounded time even though the busy actor has many more messages queued.
func TestDispatcherFairnessAcrossActors(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	busy := &recordingBehavior{sleep: time.Millisecond}
	quiet := &recordingBehavior{}

	busyRef, err := sys.Spawn("busy", func() Behavior { return busy })
	require.NoError(t, err)
	quietRef, err := sys.Spawn("quiet", func() Behavior { return quiet })
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		require.NoError(t, busyRef.Tell(i))
	}
	require.NoError(t, quietRef.Tell("hello"))

	require.Eventually(t, func() bool {
		quiet.mu.Lock()
		defer quiet.mu.Unlock()
		return len(quiet.seen) == 1
	}, 2*time.Second, time.Millisecond, "quiet actor should not be starved by busy actor")
}
