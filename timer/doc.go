// Package timer multiplexes an unbounded number of logical timers
// onto a single underlying platform one-shot timer (see package
// ticks). It provides one-shot and periodic timers whose callbacks
// are dispatched on a worker pool, safe rescheduling, and three
// disposal surfaces: fire-and-forget, wait-for-quiescence, and
// await-quiescence.
//
// A single process-wide queue owns an intrusive doubly-linked list of
// active entries guarded by one mutex; callbacks run outside that
// lock so they may themselves reschedule or create timers.
package timer
