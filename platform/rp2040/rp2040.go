//go:build rp2040

// Package rp2040 backs platform.* with real hardware, following the
// build-tag convention of the retrieved devicecode-go provider
// (services/hal/internal/provider/rp2_resources.go): one file, gated
// by the board's build tag, wiring the corpus's own drivers instead of
// re-deriving them.
package rp2040

import (
	"time"
	"unsafe"

	"device/rp"
	"machine"
	"runtime/interrupt"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/aykutozdemir/fsmos-go/platform"
)

// Timebase wraps the TinyGo runtime clock, which on rp2040 is driven
// by the chip's always-on hardware timer.
type Timebase struct {
	start time.Time
}

func NewTimebase() *Timebase { return &Timebase{start: time.Now()} }

func (t *Timebase) NowMs() uint32 { return uint32(time.Since(t.start).Milliseconds()) }
func (t *Timebase) NowUs() uint32 { return uint32(time.Since(t.start).Microseconds()) }

// Sink backs the kernel's log byte-sink with a UART TX ring built on
// the project's own tinygo-uartx driver rather than re-deriving UART
// buffering from scratch.
type Sink struct {
	tx *uartx.Writer
}

func NewUARTSink(uart *machine.UART) *Sink {
	return &Sink{tx: uartx.NewWriter(uart)}
}

func (s *Sink) WriteByte(b byte) { s.tx.WriteByte(b) }

// Watchdog drives the RP2040 hardware watchdog through machine.Watchdog,
// the same peripheral the provider configures for other timing needs.
type Watchdog struct{}

func (Watchdog) Enable(timeoutMs uint32) {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: timeoutMs})
	machine.Watchdog.Start()
}

func (Watchdog) Feed() { machine.Watchdog.Update() }

// ResetRegister reads the RP2040 watchdog block's REASON register
// directly (rp2040 has no AVR-style MCUSR). ReadAndClear only reads
// REASON; it writes nothing back to clear it.
type ResetRegister struct{}

func (ResetRegister) ReadAndClear() uint8 {
	reason := rp.WATCHDOG.REASON.Get()
	return uint8(reason)
}

// NoInit keeps the persistent record in a field of the NoInit value.
// TinyGo does not expose a portable way to place a symbol in an
// unzeroed linker section across every target this driver could run
// on, so this mirrors the host stand-in: the record lives in ordinary
// RAM and is not placed in a section excluded from the startup .bss
// clear.
type NoInit struct {
	rec platform.NoInitRecord
}

func (n *NoInit) Load() platform.NoInitRecord   { return n.rec }
func (n *NoInit) Store(r platform.NoInitRecord) { n.rec = r }

// Atomic disables and restores the processor interrupt-enable state
// directly, the real counterpart of AVR's ATOMIC_BLOCK that the host
// mutex only approximates.
type Atomic struct{}

func (Atomic) Enter() uintptr {
	st := interrupt.Disable()
	return *(*uintptr)(unsafe.Pointer(&st))
}

func (Atomic) Exit(token uintptr) {
	interrupt.Restore(*(*interrupt.State)(unsafe.Pointer(&token)))
}

var (
	_ platform.Timebase      = (*Timebase)(nil)
	_ platform.Sink          = (*Sink)(nil)
	_ platform.Watchdog      = (*Watchdog)(nil)
	_ platform.ResetRegister = (*ResetRegister)(nil)
	_ platform.NoInit        = (*NoInit)(nil)
	_ platform.Atomic        = (*Atomic)(nil)
)
