// Package errcode gives the kernel's error taxonomy (spec §7) a stable,
// bus-facing identifier, the same shape as the retrieved HAL's own
// errcode package: a string newtype that is comparable, allocation-free,
// and implements error, so it can be logged, compared, and returned as
// an ordinary Go error at every resource-exhaustion boundary.
package errcode

// Code is a stable error/event identifier.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes, one per kind of spec §7's error taxonomy.
const (
	OK Code = "ok"

	// Pool-exhausted: message pool or queue hard cap reached.
	PoolExhausted Code = "pool_exhausted"

	// Admission-refused: task count at the hard cap, or the task-node
	// pool cannot grow.
	AdmissionRefused Code = "admission_refused"

	// Invalid-argument: topic 0 for publish(), topic >= MaxTopics, or a
	// nil task/hooks pointer.
	InvalidArgument Code = "invalid_argument"

	// PoolInitFailure: lazy backing allocation failed.
	PoolInitFailure Code = "pool_init_failure"

	// WatchdogReset: fatal, out-of-band; recovered by reboot.
	WatchdogReset Code = "watchdog_reset"

	// NoTarget: a direct message's target task does not exist, or a
	// published topic currently has no subscribers.
	NoTarget Code = "no_target"

	// Error is the generic fallback for anything uncategorized.
	Error Code = "error"
)

// Of extracts a Code from an error, defaulting to Error. nil maps to OK.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// E wraps a Code with operation context and an optional cause, for
// callers that want more than the bare code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Op + ": " + e.Msg
	}
	return string(e.C) + ": " + e.Op
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }
