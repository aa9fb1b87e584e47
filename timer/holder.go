package timer

import "runtime"

// holder ties the lifetime of the public handle to teardown of the
// underlying entry. Go has no deterministic drop/destructor, so a
// handle whose owner forgets to dispose it still needs its entry torn
// down once the handle itself becomes unreachable.
//
// If the user never disposes, the finalizer closes the entry when the
// holder becomes unreachable. Every explicit disposal path clears the
// finalizer so a completed close is never repeated and the holder
// doesn't linger on the finalizer queue.
type holder struct {
	e *entry
}

func newHolder(e *entry) *holder {
	h := &holder{e: e}
	runtime.SetFinalizer(h, finalizeHolder)
	return h
}

func finalizeHolder(h *holder) {
	h.e.close()
}

func (h *holder) suppressFinalizer() {
	runtime.SetFinalizer(h, nil)
}
