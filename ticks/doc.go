// Package ticks provides the two external collaborators the timer
// engine treats as opaque: a monotonic, wrapping millisecond tick
// source, and a platform one-shot timer.
//
// Real wires both to the standard library. Fake gives the timer
// package deterministic control over both for testing drift, the
// uint32 tick wrap, and timeouts beyond the native arming ceiling.
package ticks
