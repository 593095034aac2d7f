// kernel/scheduler.go
package kernel

import (
	"github.com/aykutozdemir/fsmos-go/platform"
	"github.com/aykutozdemir/fsmos-go/x/clampx"
)

// Adapters bundles the platform capabilities a Scheduler needs (spec
// §6). Pass platform/host's implementations for tests and the
// simulate command, or platform/rp2040's for real hardware.
type Adapters struct {
	Timebase      platform.Timebase
	Sink          platform.Sink
	Watchdog      platform.Watchdog
	ResetRegister platform.ResetRegister
	NoInit        platform.NoInit
	Atomic        platform.Atomic
}

// Scheduler is the kernel's single, process-wide dispatcher: periodic
// cooperative dispatch, priority + tie-break selection, budget-gated
// admission, message delivery, and timing/delay attribution (spec
// §4.5). A clean re-implementation threads it as an explicit value
// instead of a global `OS` singleton, per spec §9's design note.
type Scheduler struct {
	timebase platform.Timebase
	watchdog platform.Watchdog
	resetReg platform.ResetRegister
	noinitIO platform.NoInit

	log *Logger

	pool  Pool
	queue Queue
	tasks taskPool

	head, tail *Task
	taskCount  int
	nextTaskID uint8

	nowMs              uint32
	running            bool
	watchdogEnabled    bool
	lastExecutedTaskID uint8
	noinitRecord       platform.NoInitRecord
	canary             Canary
}

// New constructs a Scheduler bound to the given adapters. Call Begin
// once before the first Tick.
func New(ad Adapters, level LogLevel) *Scheduler {
	s := &Scheduler{
		timebase:   ad.Timebase,
		watchdog:   ad.Watchdog,
		resetReg:   ad.ResetRegister,
		noinitIO:   ad.NoInit,
		nextTaskID: 1,
	}
	s.log = NewLogger(ad.Sink, level)
	s.pool = *NewPool(ad.Atomic, s.log)
	s.queue = *NewQueue(ad.Atomic)
	return s
}

// Begin paints the stack canary region, reads and clears the
// reset-cause register, latches it into the noinit record (preserving
// whatever last_task_id the prior session left there), sets running,
// and starts every already-admitted task (spec §9).
func (s *Scheduler) Begin(canaryRegion []byte) {
	prior := s.noinitIO.Load()

	rawFlags := s.resetReg.ReadAndClear()
	s.nowMs = s.timebase.NowMs()

	s.noinitRecord = platform.NoInitRecord{
		ResetReason:       rawFlags,
		ResetTimeMs:       s.nowMs,
		WatchdogTimeoutMs: prior.WatchdogTimeoutMs,
		LastTaskID:        prior.LastTaskID,
		OptibootFlags:     prior.OptibootFlags,
		OptibootCause:     prior.OptibootCause,
	}
	s.noinitIO.Store(s.noinitRecord)

	if canaryRegion != nil {
		s.canary.Paint(canaryRegion, 0xA5)
	}

	s.running = true
	for t := s.head; t != nil; t = t.next {
		ctx := &TaskCtx{sched: s, task: t}
		t.start(ctx)
	}
}

// ReadResetInfo returns the causality snapshot captured at Begin, then
// clears last_task_id back to its sentinel so a future crash before
// any task runs is not misattributed to this session's culprit (spec
// §3: "read once by the application; last_task_id is reset to sentinel
// after being read").
func (s *Scheduler) ReadResetInfo() ResetInfo {
	rec := s.noinitRecord
	info := ResetInfo{
		ResetReason:       rec.ResetReason,
		LastTaskID:        rec.LastTaskID,
		ResetTimeMs:       rec.ResetTimeMs,
		WatchdogTimeoutMs: rec.WatchdogTimeoutMs,
		Cause:             deriveCause(rec.ResetReason),
	}
	s.noinitRecord.LastTaskID = sentinelNoTask
	s.noinitIO.Store(s.noinitRecord)
	return info
}

// EnableWatchdog arms the platform watchdog and records the timeout in
// the noinit record so a future ReadResetInfo can report it.
func (s *Scheduler) EnableWatchdog(timeoutMs uint32) {
	s.watchdog.Enable(timeoutMs)
	s.watchdogEnabled = true
	s.noinitRecord.WatchdogTimeoutMs = uint16(clampx.Min(timeoutMs, 0xFFFF))
	s.noinitIO.Store(s.noinitRecord)
}

// Stop flips the running flag off; it does not unwind any task.
func (s *Scheduler) Stop() { s.running = false }

// Running reports whether Begin has run and Stop has not.
func (s *Scheduler) Running() bool { return s.running }

// NowMs returns the system time as of the last Tick.
func (s *Scheduler) NowMs() uint32 { return s.nowMs }

// TaskCount returns the number of currently admitted tasks.
func (s *Scheduler) TaskCount() int { return s.taskCount }

// Task returns the admitted task with the given id, or nil.
func (s *Scheduler) Task(id uint8) *Task { return s.findTask(id) }

// TaskStats returns a copy of the named task's stats and whether it
// was found.
func (s *Scheduler) TaskStats(id uint8) (TaskStats, bool) {
	t := s.findTask(id)
	if t == nil {
		return TaskStats{}, false
	}
	return t.stats, true
}

// ScanCanary computes and returns the free-stack high-water estimate
// over region; the result is not stored by the scheduler. It is not
// called automatically every tick: scanning is O(n) over the canary
// region (SPEC_FULL.md's canary contract).
func (s *Scheduler) ScanCanary(region []byte) int {
	return s.canary.HighWaterMark(region, 0xA5)
}

// Add admits a new task: rejects if task_count is at the MaxTopics
// hard cap or the task-node pool cannot supply a slot, assigns an id
// (wrapping past 0 back to 1), appends it to the task list, and, if
// Begin has already run, starts it (invoking on_start); otherwise Begin
// starts it (spec §4.5).
func (s *Scheduler) Add(name string, hooks TaskHooks, cfg TaskConfig) (uint8, error) {
	if hooks == nil {
		return 0, ErrNilHooks
	}
	if s.taskCount >= MaxTopics {
		return 0, errAdmissionRefused
	}
	node := s.tasks.acquire()
	if node == nil {
		return 0, errAdmissionRefused
	}

	id := s.nextTaskID
	s.nextTaskID++
	if s.nextTaskID == 0 {
		s.nextTaskID = 1
	}

	node.name = name
	node.hooks = hooks
	node.id = id
	node.periodMs = clampPeriod(cfg.PeriodMs)
	node.priority = cfg.Priority
	node.budget = orDefaultBudget(cfg.Budget)
	node.queueWhileSuspended = cfg.QueueWhileSuspended
	node.next = nil

	if s.tail == nil {
		s.head = node
		s.tail = node
	} else {
		s.tail.next = node
		s.tail = node
	}
	s.taskCount++

	if s.running {
		ctx := &TaskCtx{sched: s, task: node}
		node.start(ctx)
	}
	return id, nil
}

// Remove forcibly unlinks and reclaims a task node outside of the
// normal TERMINATED-reclaim path (restored from FsmOS.cpp's
// Scheduler::remove; see SPEC_FULL.md's supplemented-features list).
// It is an administrative escape hatch: application tasks should call
// TaskCtx.Terminate, not this.
func (s *Scheduler) Remove(id uint8) bool {
	t := s.findTask(id)
	if t == nil {
		return false
	}
	s.unlinkAndReclaim(t)
	return true
}

func (s *Scheduler) findTask(id uint8) *Task {
	for t := s.head; t != nil; t = t.next {
		if t.id == id {
			return t
		}
	}
	return nil
}

// subscriberCount counts subscribers publish() can actually reach: an
// active task receives on_msg directly, and a suspended task with
// queue_while_suspended set still accepts the message into its
// suspended queue (spec.md's Scenario 5) — only a suspended task
// without that flag, an inactive one, or a terminated one would drop
// it on arrival.
func (s *Scheduler) subscriberCount(topic uint8) int {
	n := 0
	for t := s.head; t != nil; t = t.next {
		if !t.isSubscribed(topic) {
			continue
		}
		if t.state == Active || (t.state == Suspended && t.queueWhileSuspended) {
			n++
		}
	}
	return n
}

// freeQueueSlots is the budget-gate denominator of spec §4.5 I9.
func (s *Scheduler) freeQueueSlots() int { return s.queue.FreeSlots() }

// tell enqueues a direct message. See TaskCtx.Tell.
func (s *Scheduler) tell(srcID, dstID, typ uint8, arg uint16) error {
	if s.findTask(dstID) == nil {
		return errNoTarget
	}
	h, err := s.pool.Allocate()
	if err != nil {
		return err
	}
	defer h.Drop()
	rec := h.Record()
	rec.Type = typ
	rec.Topic = 0
	rec.Arg = arg
	rec.TargetTaskID = dstID
	if !s.queue.Enqueue(dstID, *rec, nil) {
		return errPoolExhausted
	}
	return nil
}

// publish enqueues a fan-out message. See TaskCtx.Publish.
func (s *Scheduler) publish(srcID, topic, typ uint8, arg uint16) error {
	if topic == 0 || int(topic) >= MaxTopics {
		return errInvalidArgument
	}
	if s.subscriberCount(topic) == 0 {
		return errNoTarget
	}
	h, err := s.pool.Allocate()
	if err != nil {
		return err
	}
	defer h.Drop()
	rec := h.Record()
	rec.Type = typ
	rec.Topic = topic
	rec.Arg = arg
	rec.TargetTaskID = 0
	if !s.queue.Enqueue(0, *rec, nil) {
		return errPoolExhausted
	}
	return nil
}

// Tick runs one pass of the scheduler's main loop: refresh time,
// decrement remaining_time on active tasks, feed the watchdog, drain
// the message queue, select and dispatch one ready task, and reclaim
// every task that is TERMINATED by the end of the tick (spec §4.5's
// loop_once, ordered (a)-(f)).
func (s *Scheduler) Tick() {
	s.nowMs = s.timebase.NowMs()

	for t := s.head; t != nil; t = t.next {
		if t.state == Active && t.remaining > 0 {
			t.remaining--
		}
	}

	if s.watchdogEnabled {
		s.watchdog.Feed()
	}

	s.deliver()
	s.selectAndDispatch()

	// dispatch reclaims the task it ran; this catches tasks terminated
	// elsewhere this tick (from OnMsg, or by another task).
	for t := s.head; t != nil; {
		next := t.next
		if t.state == Terminated {
			t.hooks.OnTerminate(&TaskCtx{sched: s, task: t})
			s.unlinkAndReclaim(t)
		}
		t = next
	}
}

// deliver drains the global queue to empty, delivering each message to
// its direct target or fanning it out to every active subscriber
// before recycling the node (spec §4.3).
func (s *Scheduler) deliver() {
	for {
		node, ok := s.queue.dequeue()
		if !ok {
			return
		}
		if node.rec.Topic == 0 {
			s.deliverTo(s.findTask(node.target), node.rec)
		} else {
			for t := s.head; t != nil; t = t.next {
				if t.isSubscribed(node.rec.Topic) {
					s.deliverTo(t, node.rec)
				}
			}
		}
		s.queue.release(node)
	}
}

func (s *Scheduler) deliverTo(t *Task, rec Record) {
	if t == nil {
		return
	}
	switch t.state {
	case Active:
		ctx := &TaskCtx{sched: s, task: t}
		// First drain anything queued while suspended, then the new
		// message, matching process_messages' ordering (spec §4.4).
		if len(t.suspendedQueue) > 0 {
			queued := t.suspendedQueue
			t.suspendedQueue = nil
			for _, qr := range queued {
				t.hooks.OnMsg(ctx, qr)
			}
		}
		t.hooks.OnMsg(ctx, rec)
	case Suspended:
		if t.queueWhileSuspended {
			t.suspendedQueue = append(t.suspendedQueue, rec)
		}
	default:
		// Inactive or terminated: dropped.
	}
}

// selectAndDispatch picks the highest-priority ready task, breaking
// ties by smallest id, gated by the budget check, and runs it (spec
// §4.5 steps 1-3, I8, I9).
func (s *Scheduler) selectAndDispatch() {
	var best *Task
	for t := s.head; t != nil; t = t.next {
		if t.state != Active || t.remaining != 0 {
			continue
		}
		need := t.budget
		if need < 1 {
			need = 1
		}
		if s.freeQueueSlots() < int(need) {
			continue
		}
		if best == nil || t.priority > best.priority || (t.priority == best.priority && t.id < best.id) {
			best = t
		}
	}
	if best == nil {
		return
	}
	s.dispatch(best)
}

func (s *Scheduler) dispatch(t *Task) {
	// scheduled_time is the task's own due-time anchor, not a value
	// re-derived from the current tick — otherwise actual_start_time -
	// scheduled_time would always equal period_ms (spec I7 would never
	// hold). dueMs is advanced, with bounded catch-up, below.
	scheduledMs := t.dueMs
	actualStart := s.nowMs

	if int32(actualStart-scheduledMs) > 0 {
		delay := actualStart - scheduledMs
		if delay > 0xFFFF {
			delay = 0xFFFF
		}
		if prev := s.findTask(s.lastExecutedTaskID); s.lastExecutedTaskID != 0 && prev != nil {
			prev.stats.DelayCount++
			if uint16(delay) > prev.stats.MaxDelayMs {
				prev.stats.MaxDelayMs = uint16(delay)
			}
		} else {
			s.log.Warn("dispatch delay with no prior task to attribute")
		}
	}

	t.stats.ScheduledMs = scheduledMs
	t.stats.ActualStartMs = actualStart
	t.remaining = t.periodMs

	// Advance the due-time anchor by one period; on a missed deadline,
	// re-anchor to now+period_ms instead of replaying the backlog
	// (spec §4.5: "bounded catch-up, never unbounded replay"; FsmOS.cpp's
	// Scheduler::loop_once does the same next_due += period / re-anchor).
	t.dueMs += uint32(t.periodMs)
	if int32(t.dueMs-s.nowMs) < 0 {
		t.dueMs = s.nowMs + uint32(t.periodMs)
	}

	s.noinitRecord.LastTaskID = t.id
	s.noinitIO.Store(s.noinitRecord)

	ctx := &TaskCtx{sched: s, task: t}
	// Messages queued while the task was suspended reach on_msg before
	// its first step after resume, even if no new message arrived.
	if len(t.suspendedQueue) > 0 {
		queued := t.suspendedQueue
		t.suspendedQueue = nil
		for _, qr := range queued {
			t.hooks.OnMsg(ctx, qr)
		}
	}
	startUs := s.timebase.NowUs()
	t.hooks.Step(ctx)
	elapsedUs := s.timebase.NowUs() - startUs

	t.stats.RunCount = clampx.SaturatingAdd[uint16](t.stats.RunCount, 1, 0xFFFF)
	if elapsedUs > t.stats.MaxExecUs {
		t.stats.MaxExecUs = elapsedUs
	}
	t.stats.AvgExecUs = updateAvgExecUs(t.stats.AvgExecUs, elapsedUs, t.stats.RunCount)

	s.lastExecutedTaskID = t.id

	if t.state == Terminated {
		t.hooks.OnTerminate(ctx)
		s.unlinkAndReclaim(t)
	}
}

// updateAvgExecUs is a simple moving average until run_count saturates
// at 65535, after which it switches to an exponential moving average
// with factor 1/1000 to avoid overflow (spec §4.5 step 5; §9 fixes the
// historical ambiguity by deriving rather than storing a running
// total).
func updateAvgExecUs(avg, sample uint32, runCount uint16) uint32 {
	diff := int64(sample) - int64(avg)
	if runCount == 0 {
		return sample
	}
	if runCount < 0xFFFF {
		return uint32(int64(avg) + diff/int64(runCount))
	}
	return uint32(int64(avg) + diff/1000)
}

func (s *Scheduler) unlinkAndReclaim(t *Task) {
	var prev *Task
	for cur := s.head; cur != nil; cur = cur.next {
		if cur == t {
			if prev == nil {
				s.head = cur.next
			} else {
				prev.next = cur.next
			}
			if cur == s.tail {
				s.tail = prev
			}
			break
		}
		prev = cur
	}
	s.taskCount--
	s.tasks.release(t)
}
