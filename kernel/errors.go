// kernel/errors.go
package kernel

import "github.com/aykutozdemir/fsmos-go/errcode"

// Sentinel errors for Go-level API misuse, in the same style as the
// retrieved HAL's halerr package; bus/log-facing callers that want the
// stable taxonomy instead should use errcode.Of(err).
var (
	errPoolExhausted    = errcode.PoolExhausted
	errAdmissionRefused = errcode.AdmissionRefused
	errInvalidArgument  = errcode.InvalidArgument
	errNoTarget         = errcode.NoTarget

	// ErrNilHooks is returned by Add when hooks is nil.
	ErrNilHooks = errWrap("nil task hooks")
)

type errWrap string

func (e errWrap) Error() string { return string(e) }
