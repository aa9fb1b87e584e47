package ticks

import "time"

// Clock abstracts the tick source and the platform one-shot timer so
// the timer queue never calls the time package directly. Production
// code uses Real(); tests use Fake() for deterministic control.
type Clock interface {
	// NowMS returns the current tick: milliseconds since an arbitrary
	// epoch, truncated to 32 bits. Callers must treat it as wrapping
	// and only ever compare ticks with modular uint32 subtraction.
	NowMS() uint32

	// AfterFunc arranges for f to run no earlier than d from now.
	// Each call is independent; replacing an outstanding request is
	// the caller's job (Stop the previous Canceler first).
	AfterFunc(d time.Duration, f func()) Canceler
}

// Canceler cancels a pending AfterFunc callback.
type Canceler interface {
	// Stop prevents the callback from firing. Returns false if the
	// callback has already fired or Stop was already called.
	Stop() bool
}
