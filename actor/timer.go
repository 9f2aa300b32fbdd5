package actor

import (
	"sync"
	"time"
)

// TimerScheduler schedules delayed and repeating messages to be delivered
// back to a single actor. Every timer it creates is bound to that actor's
// lifetime: restarting or stopping the actor cancels every outstanding
// timer, and scheduling a new timer under a key already in use cancels the
// previous one first.
type TimerScheduler struct {
	mu      sync.Mutex
	cell    *actorCell
	system  *ActorSystem
	entries map[string]*timerEntry
}

type timerEntry struct {
	cancelFn func()
	kind     timerKind
}

type timerKind int

const (
	kindSingleShot timerKind = iota
	kindFixedDelay
	kindFixedRate
)

func newTimerScheduler(system *ActorSystem, cell *actorCell) *TimerScheduler {
	return &TimerScheduler{
		system:  system,
		cell:    cell,
		entries: make(map[string]*timerEntry),
	}
}

// StartSingleShot schedules payload to be delivered to the owning actor once,
// after delay elapses. Scheduling another timer (of any kind) under the same
// key cancels this one.
func (t *TimerScheduler) StartSingleShot(key string, delay time.Duration, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key)

	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.entries[key]
		if live {
			delete(t.entries, key)
		}
		t.mu.Unlock()
		if live {
			t.deliver(payload)
		}
	})
	t.entries[key] = &timerEntry{cancelFn: timer.Stop, kind: kindSingleShot}
}

// StartFixedDelay schedules payload to be delivered repeatedly, with at
// least `delay` elapsing between the end of one delivery's scheduling tick
// and the start of the next, regardless of how long the actor's handler
// takes to process it. It self-reschedules on every tick rather than using a
// ticker, which is what guarantees the gap floor.
func (t *TimerScheduler) StartFixedDelay(key string, delay time.Duration, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key)
	t.scheduleFixedDelayLocked(key, delay, payload)
}

// scheduleFixedDelayLocked arms the next tick of a fixed-delay timer. It must
// be called with t.mu held, including when invoked from inside the
// AfterFunc callback (which re-acquires the lock itself), so that the
// callback's write to t.entries[key] and this function's write never race.
func (t *TimerScheduler) scheduleFixedDelayLocked(key string, delay time.Duration, payload any) {
	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.entries[key]
		if !live {
			t.mu.Unlock()
			return
		}
		t.scheduleFixedDelayLocked(key, delay, payload)
		t.mu.Unlock()
		t.deliver(payload)
	})
	t.entries[key] = &timerEntry{cancelFn: timer.Stop, kind: kindFixedDelay}
}

// StartFixedRate schedules payload to be delivered on a steady tick of
// `interval`, independent of handler runtime; a slow handler can cause ticks
// to queue up rather than stretching the interval.
func (t *TimerScheduler) StartFixedRate(key string, interval time.Duration, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key)

	ticker := time.NewTicker(interval)
	stopCh := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				t.deliver(payload)
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()
	t.entries[key] = &timerEntry{
		cancelFn: func() { close(stopCh) },
		kind:     kindFixedRate,
	}
}

// Cancel stops the timer registered under key, if any.
func (t *TimerScheduler) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(key)
}

func (t *TimerScheduler) cancelLocked(key string) {
	if entry, ok := t.entries[key]; ok {
		entry.cancelFn()
		delete(t.entries, key)
	}
}

// cancelAll stops every outstanding timer for the owning actor. Called on
// restart and on stop.
func (t *TimerScheduler) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.entries {
		t.cancelLocked(key)
	}
}

// IsActive reports whether a timer is currently registered under key.
func (t *TimerScheduler) IsActive(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// ActiveTimers returns the keys of every timer currently registered, in no
// particular order.
func (t *TimerScheduler) ActiveTimers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	return keys
}

func (t *TimerScheduler) deliver(payload any) {
	ref := t.cell.ref
	if !ref.IsAlive() {
		return
	}
	t.system.metrics.Increment(metricTimerFired, 1, Tags{"actor": t.cell.id})
	_ = ref.Tell(payload)
}
