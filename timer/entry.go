package timer

import (
	"sync/atomic"

	"github.com/fixkme/gokit/errs"
	"github.com/fixkme/gokit/mlog"
)

// infinite is the due_offset/period sentinel meaning "not in the
// list" / "one-shot", matching the unsigned timer surface's
// 0xFFFFFFFF reservation.
const infinite = ^uint32(0)

// entry is the scheduled unit: one logical timer. The linkage
// (prev/next, head splice) is adapted from the intrusive list of the
// time-wheel scheduler this package replaced (see DESIGN.md); the
// scheduling fields and the close
// lifecycle follow the managed-timer contract directly.
type entry struct {
	dueOffset  uint32
	period     uint32
	startTick  uint32
	prev, next *entry

	callback func(any)
	state    any

	inFlightCount int
	canceled      atomic.Bool
	completion    completionNotify

	q *queue
}

func newEntry(q *queue, callback func(any), state any, due, period uint32) (*entry, error) {
	if callback == nil {
		return nil, errs.ArgNull
	}
	e := &entry{
		dueOffset: infinite,
		period:    infinite,
		callback:  callback,
		state:     state,
		q:         q,
	}
	if due != infinite {
		if err := e.change(due, period); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// change relinks or detaches the entry per the new due/period. It
// fails with DISPOSED once the entry has been closed by any surface.
func (e *entry) change(due, period uint32) error {
	e.q.mu.Lock()
	defer e.q.mu.Unlock()
	if e.canceled.Load() {
		return errs.Disposed
	}
	if due == infinite {
		e.q.deleteLocked(e)
		return nil
	}
	e.q.updateLocked(e, due, period)
	return nil
}

// close is the prompt-dispose surface. Returns whether this call is
// the one that transitioned the entry to canceled.
func (e *entry) close() bool {
	e.q.mu.Lock()
	defer e.q.mu.Unlock()
	if e.canceled.Load() {
		return false
	}
	e.canceled.Store(true)
	e.q.deleteLocked(e)
	return true
}

// closeWithSignal is the signal-on-quiescence dispose surface. Fails
// if the entry has already been closed by any surface.
func (e *entry) closeWithSignal(s Signal) error {
	e.q.mu.Lock()
	if e.canceled.Load() {
		e.q.mu.Unlock()
		return errs.AlreadyClosed
	}
	e.canceled.Store(true)
	e.completion = &externalSignal{s: s}
	e.q.deleteLocked(e)
	fireNow := e.inFlightCount == 0
	e.q.mu.Unlock()
	if fireNow {
		s.Set()
	}
	return nil
}

// closeAsync is the await-quiescence dispose surface. It is
// idempotent with itself (repeated calls return the same future) but
// rejects a prior successful closeWithSignal: an externally supplied
// signal object may be auto-reset and consumed before this future
// could observe it, so the two are deliberately not bridged.
func (e *entry) closeAsync() (<-chan struct{}, error) {
	e.q.mu.Lock()

	alreadyCanceled := e.canceled.Load()
	if alreadyCanceled {
		if _, ok := e.completion.(*externalSignal); ok {
			e.q.mu.Unlock()
			return nil, errs.AlreadyClosed
		}
	} else {
		e.canceled.Store(true)
		e.q.deleteLocked(e)
	}

	if e.inFlightCount == 0 {
		af, ok := e.completion.(*asyncFuture)
		if !ok {
			af = newAsyncFuture()
			close(af.ch)
			e.completion = af
		}
		e.q.mu.Unlock()
		return af.ch, nil
	}

	af, ok := e.completion.(*asyncFuture)
	if !ok {
		af = newAsyncFuture()
		e.completion = af
	}
	ch := af.ch
	e.q.mu.Unlock()
	return ch, nil
}

// fire is invoked either in-line by the sweep or on the worker pool.
// A canceled entry is silently skipped. A callback panic is treated
// as an ordinary return — it never leaves inFlightCount inflated and
// never escapes to the caller of fire.
func (e *entry) fire() {
	e.q.mu.Lock()
	if e.canceled.Load() {
		e.q.mu.Unlock()
		return
	}
	e.inFlightCount++
	e.q.mu.Unlock()

	e.invoke()

	e.q.mu.Lock()
	e.inFlightCount--
	var notify completionNotify
	if e.canceled.Load() && e.inFlightCount == 0 && e.completion != nil {
		notify = e.completion
	}
	e.q.mu.Unlock()

	if notify != nil {
		notify.signal()
	}
}

func (e *entry) invoke() {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("timer callback panic: %v", r)
		}
	}()
	e.callback(e.state)
}
