package timer

import (
	"time"

	"github.com/fixkme/gokit/errs"
)

// INFINITE disables whichever due/period argument it is passed as on
// the int64-millisecond surfaces. On the time.Duration surfaces the
// disabling value is -1*time.Millisecond; INFINITE passed there is
// -1ns, which truncates to 0ms.
const INFINITE = -1

// maxSupportedMS is the largest due/period value accepted on the
// signed/duration surfaces; 0xFFFFFFFF is reserved as the unsigned
// surface's INFINITE sentinel.
const maxSupportedMS = int64(0xFFFFFFFE)

// Timer is the public handle: input validation, unit conversion, and
// the three disposal surfaces. It holds no scheduling state itself —
// that lives in the entry reached through its holder.
type Timer struct {
	h *holder
}

// New creates a timer from time.Duration inputs, the idiomatic Go
// surface. due == -1*time.Millisecond disables it; period == 0 makes
// it one-shot. due == 0 fires as soon as the queue can dispatch it.
func New(callback func(any), state any, due, period time.Duration) (*Timer, error) {
	return NewMS(callback, state, due.Milliseconds(), period.Milliseconds())
}

// NewMS creates a timer from signed 64-bit millisecond inputs.
func NewMS(callback func(any), state any, dueMS, periodMS int64) (*Timer, error) {
	due, err := signedMSToTicks(dueMS)
	if err != nil {
		return nil, err
	}
	period, err := signedMSToTicks(periodMS)
	if err != nil {
		return nil, err
	}
	return newTimerOn(defaultQueue(), callback, state, due, period)
}

// NewUnsigned creates a timer from unsigned 32-bit millisecond inputs.
// 0xFFFFFFFF means INFINITE; every other value up to 0xFFFFFFFE is
// accepted as-is (this surface never returns OUT_OF_RANGE).
func NewUnsigned(callback func(any), state any, dueMS, periodMS uint32) (*Timer, error) {
	return newTimerOn(defaultQueue(), callback, state, unsignedToTicks(dueMS), unsignedToTicks(periodMS))
}

func newTimerOn(q *queue, callback func(any), state any, due, period uint32) (*Timer, error) {
	e, err := newEntry(q, callback, state, due, period)
	if err != nil {
		return nil, err
	}
	return &Timer{h: newHolder(e)}, nil
}

// Change reschedules the timer using time.Duration inputs. Fails with
// DISPOSED if the timer has already been stopped.
func (t *Timer) Change(due, period time.Duration) error {
	return t.ChangeMS(due.Milliseconds(), period.Milliseconds())
}

// ChangeMS reschedules the timer using signed 64-bit millisecond inputs.
func (t *Timer) ChangeMS(dueMS, periodMS int64) error {
	due, err := signedMSToTicks(dueMS)
	if err != nil {
		return err
	}
	period, err := signedMSToTicks(periodMS)
	if err != nil {
		return err
	}
	return t.h.e.change(due, period)
}

// ChangeUnsigned reschedules the timer using unsigned 32-bit
// millisecond inputs.
func (t *Timer) ChangeUnsigned(dueMS, periodMS uint32) error {
	return t.h.e.change(unsignedToTicks(dueMS), unsignedToTicks(periodMS))
}

// Stop disposes the timer and returns immediately. An in-flight
// callback, if any, may still be running when Stop returns.
func (t *Timer) Stop() bool {
	wasActive := t.h.e.close()
	t.h.suppressFinalizer()
	return wasActive
}

// StopWithSignal disposes the timer and sets s once the timer has
// fully quiesced (no callback executing). It fails with
// ALREADY_CLOSED if the timer was already stopped by any surface.
func (t *Timer) StopWithSignal(s Signal) (bool, error) {
	if s == nil {
		return false, errs.ArgNull
	}
	if err := t.h.e.closeWithSignal(s); err != nil {
		return false, err
	}
	t.h.suppressFinalizer()
	return true, nil
}

// StopAsync disposes the timer and returns a channel that closes once
// the timer has fully quiesced. It fails with ALREADY_CLOSED if
// StopWithSignal already claimed the completion slot: an externally
// supplied signal object may be auto-reset and consumed before this
// future could observe it, so the two surfaces are deliberately not
// bridged.
func (t *Timer) StopAsync() (<-chan struct{}, error) {
	ch, err := t.h.e.closeAsync()
	if err != nil {
		return nil, err
	}
	t.h.suppressFinalizer()
	return ch, nil
}

func signedMSToTicks(ms int64) (uint32, error) {
	if ms == INFINITE {
		return infinite, nil
	}
	if ms < INFINITE {
		return 0, errs.OutOfRange
	}
	if ms > maxSupportedMS {
		return 0, errs.OutOfRange
	}
	return uint32(ms), nil
}

func unsignedToTicks(ms uint32) uint32 {
	if ms == infinite {
		return infinite
	}
	return ms
}
