package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// timerCatcher collects every payload it is sent via its timer scheduler.
type timerCatcher struct {
	mu   sync.Mutex
	seen []any
}

func (t *timerCatcher) Receive(ctx *Context, msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = append(t.seen, msg)
	return nil
}

func (t *timerCatcher) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// TestSingleShotTimerFiresOnce covers StartSingleShot.
func TestSingleShotTimerFiresOnce(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	catcher := &timerCatcher{}
	_, err := sys.Spawn("timed", func() Behavior {
		return catcher
	})
	require.NoError(t, err)

	cellRef, _ := sys.Get("timed")
	lr := cellRef.(*localRef)
	lr.cell.timers.StartSingleShot("once", 20*time.Millisecond, "fired")

	require.Eventually(t, func() bool { return catcher.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, catcher.count())
}

// TestCancelPreventsTimerDelivery is invariant 5: cancel(key) guarantees no
// further deliveries for that key.
func TestCancelPreventsTimerDelivery(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	catcher := &timerCatcher{}
	_, err := sys.Spawn("timed", func() Behavior { return catcher })
	require.NoError(t, err)

	cellRef, _ := sys.Get("timed")
	lr := cellRef.(*localRef)
	lr.cell.timers.StartSingleShot("key", 30*time.Millisecond, "payload")
	lr.cell.timers.Cancel("key")

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 0, catcher.count())
}

// TestIsActiveReflectsTimerState covers IsActive/ActiveTimers: both report
// the current set of registered timers, updating on Cancel.
func TestIsActiveReflectsTimerState(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	catcher := &timerCatcher{}
	_, err := sys.Spawn("timed", func() Behavior { return catcher })
	require.NoError(t, err)

	cellRef, _ := sys.Get("timed")
	lr := cellRef.(*localRef)

	require.False(t, lr.cell.timers.IsActive("once"))
	lr.cell.timers.StartSingleShot("once", time.Second, "payload")
	require.True(t, lr.cell.timers.IsActive("once"))
	require.Contains(t, lr.cell.timers.ActiveTimers(), "once")

	lr.cell.timers.Cancel("once")
	require.False(t, lr.cell.timers.IsActive("once"))
	require.NotContains(t, lr.cell.timers.ActiveTimers(), "once")
}

// TestFixedDelayMaintainsGap covers StartFixedDelay's gap-floor guarantee.
func TestFixedDelayMaintainsGap(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	catcher := &timerCatcher{}
	_, err := sys.Spawn("timed", func() Behavior { return catcher })
	require.NoError(t, err)

	cellRef, _ := sys.Get("timed")
	lr := cellRef.(*localRef)

	start := time.Now()
	lr.cell.timers.StartFixedDelay("tick", 20*time.Millisecond, "tick")

	require.Eventually(t, func() bool { return catcher.count() >= 3 }, time.Second, time.Millisecond)
	lr.cell.timers.Cancel("tick")

	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

// TestDisposeStopsAllTimers covers scheduler dispose on actor stop.
func TestDisposeStopsAllTimers(t *testing.T) {
	t.Parallel()

	sys := NewActorSystem()
	defer sys.Shutdown()

	catcher := &timerCatcher{}
	_, err := sys.Spawn("timed", func() Behavior { return catcher })
	require.NoError(t, err)

	cellRef, _ := sys.Get("timed")
	lr := cellRef.(*localRef)
	lr.cell.timers.StartFixedRate("rate", 10*time.Millisecond, "x")

	time.Sleep(25 * time.Millisecond)
	require.NoError(t, sys.Stop("timed"))

	countAfterStop := catcher.count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, countAfterStop, catcher.count())
}
