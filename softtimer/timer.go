// Package softtimer provides the non-blocking "start, expired?" timer
// the kernel relies on for any waiting a task needs to express — there
// is no blocking primitive in the kernel, so a long operation is a
// state machine driven by polling a Timer from step() or on_msg().
// It mirrors FsmOS.h's Timer struct, composing with platform.Timebase
// instead of a global OS.now() singleton (see SPEC_FULL.md §9).
package softtimer

import "github.com/aykutozdemir/fsmos-go/platform"

// Timer is a soft timer. An unstarted Timer (or one started with
// duration 0) reports expired immediately. The zero Timer has no
// timebase: Expired and Remaining work on it, but Start panics.
type Timer struct {
	tb         platform.Timebase
	startMs    uint32
	durationMs uint32
}

// New binds a Timer to a timebase.
func New(tb platform.Timebase) *Timer {
	return &Timer{tb: tb}
}

// Start (re)arms the timer for durationMs starting now.
func (t *Timer) Start(durationMs uint32) {
	t.durationMs = durationMs
	t.startMs = t.tb.NowMs()
}

// Expired reports whether the timer has run out. A zero duration is
// always expired.
func (t *Timer) Expired() bool {
	if t.durationMs == 0 {
		return true
	}
	return int32(t.tb.NowMs()-t.startMs) >= int32(t.durationMs)
}

// Remaining returns the milliseconds left, zero if expired.
func (t *Timer) Remaining() uint32 {
	if t.Expired() {
		return 0
	}
	elapsed := t.tb.NowMs() - t.startMs
	return t.durationMs - elapsed
}
