// kernel/config.go
package kernel

import "github.com/aykutozdemir/fsmos-go/x/clampx"

// Compile-time tunables. These mirror the constants of the original
// FsmOS C++ sources (FSMOS_MAX_TASKS, FSMOS_GLOBAL_QUEUE_CAP, ...),
// sized for an 8-bit target with ~2 KiB RAM.
const (
	// MaxMessagePoolSize is the hard cap on total queue nodes and pool
	// records (spec MAX_MESSAGE_POOL_SIZE).
	MaxMessagePoolSize = 32

	// TopicBitfieldSize is the subscription-bitfield width; one of
	// {8, 16, 32}. It also fixes MaxTopics, which doubles as the hard
	// admission cap on the number of tasks (spec: "the hard cap is the
	// bit-width of the subscription bitfield").
	TopicBitfieldSize = 32

	// MaxTopics is the number of valid topic ids, including the
	// reserved direct-message topic 0.
	MaxTopics = TopicBitfieldSize

	// MinTaskPeriodMs and MaxTaskPeriodMs bound a task's period on
	// admission (clamped, never rejected). DefaultTaskPeriodMs is not
	// applied by Add: a zero PeriodMs is clamped up to MinTaskPeriodMs.
	DefaultTaskPeriodMs = 100
	MinTaskPeriodMs     = 1
	MaxTaskPeriodMs     = 60_000

	// DefaultTaskMessageBudget is used when a task does not declare a
	// peak per-step message budget.
	DefaultTaskMessageBudget = 1

	// StackCanaryMarginBytes is the headroom left unpainted nearest the
	// stack pointer (spec FSMOS_STACK_CANARY_MARGIN).
	StackCanaryMarginBytes = 32

	// queueGrowChunk bounds how many free nodes the global queue
	// allocates at once when its free-list runs dry.
	queueGrowChunk = 4

	// sentinelNoTask marks "no task" in the reset-info record's
	// last_task_id. Delay attribution uses 0 for "no task" instead. Ids
	// start at 1 and wrap from 255 back to 1, so a task can also hold
	// id 255.
	sentinelNoTask = 255

	// minAdaptivePoolSize is the floor update_adaptive_limit will not
	// shrink the pool below.
	minAdaptivePoolSize = 4
)

func clampPeriod(ms uint16) uint16 {
	return clampx.Clamp[uint16](ms, MinTaskPeriodMs, MaxTaskPeriodMs)
}

func orDefaultBudget(b uint8) uint8 {
	if b == 0 {
		return DefaultTaskMessageBudget
	}
	return b
}
