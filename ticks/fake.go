package ticks

import (
	"sync"
	"time"
)

// Fake returns a FakeClock whose tick source starts at startTick.
// Pass a value close to the uint32 max to exercise wrap behavior.
//
// FakeClock is safe for concurrent use. Time only moves when Advance
// is called; AfterFunc callbacks run synchronously, in deadline
// order, during the Advance call that crosses their deadline. The
// lock is released while a callback runs, so an Advance called from
// within a callback does not deadlock, but the outer Advance still
// ends by setting the tick to its own target, which can move time
// backwards.
func Fake(startTick uint32) *FakeClock {
	return &FakeClock{current: startTick}
}

// FakeClock is a deterministic Clock for testing the timer engine
// without real wall-clock delays.
type FakeClock struct {
	mu      sync.Mutex
	current uint32
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline uint32
	callback func()
	stopped  bool
	fired    bool
}

func (c *FakeClock) NowMS() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Canceler {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &fakeWaiter{
		deadline: c.current + clampMS(d),
		callback: f,
	}
	c.waiters = append(c.waiters, w)
	return &fakeCanceler{clock: c, w: w}
}

// Advance moves the fake clock forward by d and runs, synchronously
// and in deadline order, every pending callback whose deadline falls
// at or before the new tick. A callback that re-arms via AfterFunc
// computes its new deadline from the deadline of the waiter that is
// firing, so a re-armed waiter whose new deadline is still at or
// before the target fires within this same Advance call; one that
// lands after the target waits for a later Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current + clampMS(d)

	for {
		idx, w := c.earliestDue(target)
		if w == nil {
			break
		}
		w.fired = true
		// current tracks each waiter's own deadline as it fires, not
		// the final target, so a callback observing NowMS() (directly,
		// or indirectly through a re-arm's "now") sees the tick at
		// which it actually became due rather than the end of this
		// whole Advance call.
		c.current = w.deadline
		c.waiters = append(c.waiters[:idx], c.waiters[idx+1:]...)
		c.mu.Unlock()
		w.callback()
		c.mu.Lock()
	}
	c.current = target
	c.mu.Unlock()
}

// earliestDue returns the pending, unfired, unstopped waiter with the
// smallest deadline that has elapsed by target, or (-1, nil) if none.
// Must be called with c.mu held.
func (c *FakeClock) earliestDue(target uint32) (int, *fakeWaiter) {
	best := -1
	for i, w := range c.waiters {
		if w.fired || w.stopped {
			continue
		}
		if int32(target-w.deadline) < 0 {
			continue // not yet due, modular comparison
		}
		if best == -1 || int32(w.deadline-c.waiters[best].deadline) < 0 {
			best = i
		}
	}
	if best == -1 {
		return -1, nil
	}
	return best, c.waiters[best]
}

func clampMS(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}

type fakeCanceler struct {
	clock *FakeClock
	w     *fakeWaiter
}

func (fc *fakeCanceler) Stop() bool {
	fc.clock.mu.Lock()
	defer fc.clock.mu.Unlock()
	if fc.w.stopped || fc.w.fired {
		return false
	}
	fc.w.stopped = true
	return true
}
