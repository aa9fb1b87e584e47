package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fixkme/gokit/mlog"
	"github.com/fixkme/gokit/ticks"
)

// maxNative is the platform upper bound on a single native arming:
// 0x0FFFFFFF ms, ≈74.5 hours. A request beyond this is deliberately
// under-armed; the next sweep finds nothing due yet and re-arms with
// the recomputed remaining duration.
const maxNative = uint32(0x0FFFFFFF)

// queue is the process-wide timer scheduler: one mutex guarding one
// intrusive doubly-linked list of active entries, plus the bookkeeping
// for whatever duration is currently armed on the native one-shot
// timer.
type queue struct {
	mu   sync.Mutex
	head *entry

	armedDuration  uint32
	armedStartTick uint32
	canceler       ticks.Canceler

	clock ticks.Clock
	pool  *workerPool

	// dispatchMu serializes sweeps: the real platform timer this
	// module targets has exactly one outstanding wake slot, dispatched
	// on one thread, so a sweep whose in-line first-fire is still
	// running must hold off the next wake rather than overlap it.
	// queue.mu alone can't express that — it is released before the
	// in-line fire runs, on purpose, so re-entrant Change/Stop calls
	// from inside a callback never deadlock against it.
	dispatchMu sync.Mutex

	fires  atomic.Uint64
	pooled atomic.Uint64
}

func newQueue(clock ticks.Clock, poolSize int) (*queue, error) {
	pool, err := newWorkerPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &queue{
		armedDuration: infinite,
		clock:         clock,
		pool:          pool,
	}, nil
}

// updateLocked inserts (if detached) or relinks the entry and
// overwrites its schedule, then makes sure the native timer will wake
// in time for the new due offset.
func (q *queue) updateLocked(e *entry, due, period uint32) {
	if e.dueOffset == infinite {
		q.linkLocked(e)
	}
	e.dueOffset = due
	if period == 0 {
		e.period = infinite
	} else {
		e.period = period
	}
	e.startTick = q.clock.NowMS()
	q.ensureArmedByLocked(due)
}

// deleteLocked detaches the entry if it is linked; a no-op otherwise.
func (q *queue) deleteLocked(e *entry) {
	if e.dueOffset == infinite {
		return
	}
	q.unlinkLocked(e)
	e.dueOffset = infinite
	e.period = infinite
	e.startTick = 0
}

func (q *queue) linkLocked(e *entry) {
	e.next = q.head
	e.prev = nil
	if q.head != nil {
		q.head.prev = e
	}
	q.head = e
}

func (q *queue) unlinkLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		q.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	e.prev = nil
	e.next = nil
}

// ensureArmedByLocked arms the native timer for at most requested ms,
// clamped to maxNative, unless an outstanding arming already covers
// the request. Arming is monotonic in "earliest next wake": it only
// ever moves the wake sooner, never later.
func (q *queue) ensureArmedByLocked(requested uint32) {
	actual := requested
	if actual > maxNative {
		actual = maxNative
		q.logf("timer: clamping requested arm of %dms to maxNative %dms", requested, maxNative)
	}

	if q.armedDuration != infinite {
		elapsed := q.clock.NowMS() - q.armedStartTick
		if elapsed >= q.armedDuration {
			return // wake is imminent, let the sweep handle it
		}
		remaining := q.armedDuration - elapsed
		if actual >= remaining {
			return // already covered by the outstanding arming
		}
	}

	if q.canceler != nil {
		q.canceler.Stop()
	}
	q.canceler = q.clock.AfterFunc(time.Duration(actual)*time.Millisecond, q.fireNext)
	q.armedDuration = actual
	q.armedStartTick = q.clock.NowMS()
}

// fireNext is the sweep: the native timer's wake callback. It walks
// the list once, detaching fired one-shots and re-scheduling fired
// periodics with drift-compensated overrun subtraction, recomputes the
// next required arming, re-arms, then — outside the lock — runs the
// first expired entry in-line and hands the rest to the worker pool.
func (q *queue) fireNext() {
	q.dispatchMu.Lock()
	defer q.dispatchMu.Unlock()

	q.mu.Lock()

	q.armedDuration = infinite
	nextDuration := infinite
	var firstToFire *entry
	now := q.clock.NowMS()

	cur := q.head
	for cur != nil {
		e := cur
		cur = cur.next

		elapsed := now - e.startTick
		if elapsed >= e.dueOffset {
			if e.period != infinite {
				e.startTick = now
				overrun := elapsed - e.dueOffset
				if overrun < e.period {
					e.dueOffset = e.period - overrun
				} else {
					e.dueOffset = 1
				}
				if e.dueOffset < nextDuration {
					nextDuration = e.dueOffset
				}
			} else {
				q.deleteLocked(e)
			}

			q.fires.Add(1)
			if firstToFire == nil {
				firstToFire = e
			} else {
				q.pooled.Add(1)
				q.pool.submit(e.fire)
			}
		} else {
			remaining := e.dueOffset - elapsed
			if remaining < nextDuration {
				nextDuration = remaining
			}
		}
	}

	if nextDuration != infinite {
		q.ensureArmedByLocked(nextDuration)
	}
	q.mu.Unlock()

	if firstToFire != nil {
		firstToFire.fire()
	}
}

// Stats is a point-in-time snapshot of queue activity, surfaced for
// operators the way gate/rpc expose connection/call counters.
type Stats struct {
	Active  int
	Fires   uint64
	Pooled  uint64
}

func (q *queue) statsSnapshot() Stats {
	q.mu.Lock()
	active := 0
	for e := q.head; e != nil; e = e.next {
		active++
	}
	q.mu.Unlock()
	return Stats{
		Active:  active,
		Fires:   q.fires.Load(),
		Pooled:  q.pooled.Load(),
	}
}

func (q *queue) logf(format string, args ...any) {
	mlog.Debugf(format, args...)
}
