// Package platform declares the capabilities the kernel depends on but
// does not implement itself: the monotonic timebase, a byte sink for
// logs, the hardware watchdog, the reset-cause register, the noinit
// memory region, and the interrupt-disable atomic region. Concrete
// backends live in platform/host (pure Go, used in tests and the
// simulate command) and platform/rp2040 (TinyGo, real hardware).
package platform

// Timebase exposes monotonic milliseconds and microseconds to the
// kernel. Both wrap at 2^32; the kernel only ever compares deltas with
// signed 32-bit arithmetic, so wraparound is harmless.
type Timebase interface {
	NowMs() uint32
	NowUs() uint32
}

// Sink is a byte-oriented log destination, chosen so the kernel logger
// never needs fmt on the hot path.
type Sink interface {
	WriteByte(b byte)
}

// Watchdog is the hardware watchdog. Enable arms it; Feed pets it. A
// platform without a watchdog can implement both as no-ops.
type Watchdog interface {
	Enable(timeoutMs uint32)
	Feed()
}

// ResetRegister reads and clears the raw, platform-defined reset-cause
// flags latched at boot (e.g. AVR's MCUSR).
type ResetRegister interface {
	ReadAndClear() uint8
}

// NoInitRecord is the fixed, fixed-offset persistent layout of spec §6:
//
//	{u8 reset_reason; u32 reset_time; u16 watchdog_timeout;
//	 u8 last_task_id; u8 optiboot_flags; u8 optiboot_cause;}
//
// It survives a reset because the backing storage (a .noinit linker
// section on AVR, an in-memory NoInit value on host) is never
// zero-initialized on boot.
type NoInitRecord struct {
	ResetReason       uint8
	ResetTimeMs       uint32
	WatchdogTimeoutMs uint16
	LastTaskID        uint8
	OptibootFlags     uint8
	OptibootCause     uint8
}

// NoInit is a place to keep one NoInitRecord across a reset.
type NoInit interface {
	Load() NoInitRecord
	Store(NoInitRecord)
}

// Atomic models "briefly disable interrupts, mutate, restore the prior
// interrupt-enable state" (spec §5). Enter returns an opaque token
// describing the interrupt state before entry; Exit restores it.
//
// Atomic regions must not be entered reentrantly from the same call
// stack: a real MCU's disable/restore nests safely because it only
// ever remembers "was already disabled or not", but the host stand-in
// backs this with a plain mutex and will deadlock on nested Enter.
// The kernel never nests atomic regions; application code sharing an
// Atomic must observe the same rule.
type Atomic interface {
	Enter() uintptr
	Exit(token uintptr)
}
