package kernel

import (
	"testing"

	"github.com/aykutozdemir/fsmos-go/platform"
	"github.com/aykutozdemir/fsmos-go/platform/host"
)

// fakeTimebase advances only when the test calls advance(), so period
// countdowns and delay attribution are deterministic.
type fakeTimebase struct{ ms uint32 }

func (f *fakeTimebase) NowMs() uint32 { return f.ms }
func (f *fakeTimebase) NowUs() uint32 { return f.ms * 1000 }
func (f *fakeTimebase) advance(ms uint32) { f.ms += ms }

func newTestScheduler() (*Scheduler, *fakeTimebase, *host.ResetRegister, *host.NoInit) {
	tb := &fakeTimebase{}
	rr := &host.ResetRegister{}
	ni := &host.NoInit{}
	s := New(Adapters{
		Timebase:      tb,
		Sink:          nil,
		Watchdog:      &host.Watchdog{},
		ResetRegister: rr,
		NoInit:        ni,
		Atomic:        &host.Atomic{},
	}, LevelError)
	return s, tb, rr, ni
}

func TestDirectMessageDelivery(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	srcHooks := &recordingHooks{}
	dstHooks := &recordingHooks{}
	srcID, _ := s.Add("src", srcHooks, TaskConfig{})
	dstID, _ := s.Add("dst", dstHooks, TaskConfig{})
	s.Begin(nil)

	if err := s.tell(srcID, dstID, 7, 42); err != nil {
		t.Fatalf("tell: %v", err)
	}
	s.deliver()

	if len(dstHooks.msgs) != 1 || dstHooks.msgs[0].Type != 7 || dstHooks.msgs[0].Arg != 42 {
		t.Fatalf("dst hooks = %+v", dstHooks.msgs)
	}
	if len(srcHooks.msgs) != 0 {
		t.Fatal("src must not receive its own direct message")
	}
}

func TestPublishFanOutToSubscribersOnly(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	a, b, c := &recordingHooks{}, &recordingHooks{}, &recordingHooks{}
	idA, _ := s.Add("a", a, TaskConfig{})
	idB, _ := s.Add("b", b, TaskConfig{})
	_, _ = s.Add("c", c, TaskConfig{})
	s.Begin(nil)
	ctxA := &TaskCtx{sched: s, task: s.findTask(idA)}
	ctxA.Subscribe(3)
	ctxB := &TaskCtx{sched: s, task: s.findTask(idB)}
	ctxB.Subscribe(3)

	if err := s.publish(idA, 3, 9, 1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	s.deliver()

	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("subscribers a=%d b=%d, want 1 each", len(a.msgs), len(b.msgs))
	}
	if len(c.msgs) != 0 {
		t.Fatal("non-subscriber c must not receive the fan-out")
	}
}

func TestPublishWithNoSubscribersIsNoTarget(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	_, _ = s.Add("a", &recordingHooks{}, TaskConfig{})
	s.Begin(nil)

	if err := s.publish(1, 5, 1, 0); err != errNoTarget {
		t.Fatalf("publish with no subscribers: got %v, want errNoTarget", err)
	}
}

// Mandatory end-to-end Scenario 5 (spec.md: "Suspension queuing"): a
// subscriber that suspends itself with queue_while_suspended set must
// still be a valid publish target, and every message published while
// it is suspended must land in its suspended queue.
func TestPublishReachesSuspendedSubscriberWithQueueWhileSuspended(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	a := &recordingHooks{}
	idA, _ := s.Add("a", a, TaskConfig{QueueWhileSuspended: true})
	_, _ = s.Add("b", &recordingHooks{}, TaskConfig{})
	s.Begin(nil)

	taskA := s.findTask(idA)
	ctxA := &TaskCtx{sched: s, task: taskA}
	ctxA.Subscribe(4)
	ctxA.Suspend()

	for i := 0; i < 3; i++ {
		if err := s.publish(2, 4, uint8(i), uint16(i)); err != nil {
			t.Fatalf("publish %d: %v, want success with a suspended queueing subscriber", i, err)
		}
	}
	s.deliver()

	if len(taskA.suspendedQueue) != 3 {
		t.Fatalf("suspendedQueue len = %d, want 3", len(taskA.suspendedQueue))
	}
	if len(a.msgs) != 0 {
		t.Fatal("a suspended task must not receive on_msg directly")
	}

	ctxA.Resume()
	s.deliverTo(taskA, Record{})
	if len(a.msgs) != 4 {
		t.Fatalf("after resume, drained+new msgs = %d, want 4", len(a.msgs))
	}
}

func TestPriorityTieBreakSmallestID(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	h1, h2 := &recordingHooks{}, &recordingHooks{}
	id1, _ := s.Add("low-id", h1, TaskConfig{Priority: 5, PeriodMs: 10})
	id2, _ := s.Add("high-id", h2, TaskConfig{Priority: 5, PeriodMs: 10})
	s.Begin(nil)
	s.findTask(id1).remaining = 0
	s.findTask(id2).remaining = 0

	s.selectAndDispatch()

	if s.lastExecutedTaskID != id1 {
		t.Fatalf("dispatched task id = %d, want smallest id %d", s.lastExecutedTaskID, id1)
	}
}

func TestPriorityHigherWins(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	low, high := &recordingHooks{}, &recordingHooks{}
	idLow, _ := s.Add("low", low, TaskConfig{Priority: 1, PeriodMs: 10})
	idHigh, _ := s.Add("high", high, TaskConfig{Priority: 9, PeriodMs: 10})
	s.Begin(nil)
	s.findTask(idLow).remaining = 0
	s.findTask(idHigh).remaining = 0

	s.selectAndDispatch()

	if s.lastExecutedTaskID != idHigh {
		t.Fatalf("dispatched id = %d, want higher-priority %d", s.lastExecutedTaskID, idHigh)
	}
}

func TestBudgetGateBlocksDispatchUntilSlotsFree(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	h := &recordingHooks{}
	id, _ := s.Add("hungry", h, TaskConfig{PeriodMs: 10, Budget: 5})
	s.Begin(nil)
	s.findTask(id).remaining = 0

	// Fill the queue so fewer than 5 slots remain free.
	for i := 0; i < MaxMessagePoolSize-2; i++ {
		s.queue.Enqueue(0, Record{}, nil)
	}
	if s.freeQueueSlots() >= 5 {
		t.Fatalf("test setup: freeQueueSlots = %d, want < 5", s.freeQueueSlots())
	}

	s.selectAndDispatch()
	if s.lastExecutedTaskID == id {
		t.Fatal("task dispatched despite insufficient free queue slots")
	}

	// Drain the queue back under the gate and it should become eligible.
	for s.queue.Len() > 0 {
		n, _ := s.queue.dequeue()
		s.queue.release(n)
	}
	s.selectAndDispatch()
	if s.lastExecutedTaskID != id {
		t.Fatal("task not dispatched once the budget gate cleared")
	}
}

func TestSuspendedTaskQueuesThenDrainsOnResume(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	h := &recordingHooks{}
	id, _ := s.Add("b", h, TaskConfig{QueueWhileSuspended: true})
	s.Begin(nil)
	task := s.findTask(id)
	ctx := &TaskCtx{sched: s, task: task}
	ctx.Suspend()

	s.deliverTo(task, Record{Type: 1})
	if len(h.msgs) != 0 {
		t.Fatal("suspended task must not receive on_msg directly")
	}
	if len(task.suspendedQueue) != 1 {
		t.Fatalf("suspendedQueue len = %d, want 1", len(task.suspendedQueue))
	}

	ctx.Resume()
	s.deliverTo(task, Record{Type: 2})
	if len(h.msgs) != 2 || h.msgs[0].Type != 1 || h.msgs[1].Type != 2 {
		t.Fatalf("drained+new msgs = %+v, want [1, 2] in order", h.msgs)
	}
}

func TestBeginPreservesLastTaskIDReadClearsIt(t *testing.T) {
	s, _, _, ni := newTestScheduler()
	ni.Store(platform.NoInitRecord{LastTaskID: 3, ResetReason: 0})

	s.Begin(nil)
	if s.noinitRecord.LastTaskID != 3 {
		t.Fatalf("Begin must preserve prior LastTaskID, got %d", s.noinitRecord.LastTaskID)
	}

	info := s.ReadResetInfo()
	if info.LastTaskID != 3 {
		t.Fatalf("ReadResetInfo LastTaskID = %d, want 3", info.LastTaskID)
	}
	if s.noinitRecord.LastTaskID != sentinelNoTask {
		t.Fatalf("LastTaskID not cleared after read: %d", s.noinitRecord.LastTaskID)
	}
}

func TestDispatchDelayAttributedToPreviousTask(t *testing.T) {
	s, tb, _, _ := newTestScheduler()
	prevHooks := &recordingHooks{}
	curHooks := &recordingHooks{}
	prevID, _ := s.Add("prev", prevHooks, TaskConfig{PeriodMs: 10})
	curID, _ := s.Add("cur", curHooks, TaskConfig{PeriodMs: 10})
	s.Begin(nil)
	s.lastExecutedTaskID = prevID

	cur := s.findTask(curID)
	tb.advance(50)
	s.nowMs = tb.NowMs()
	cur.remaining = 0
	s.dispatch(cur)

	prev := s.findTask(prevID)
	if prev.stats.DelayCount == 0 {
		t.Fatal("expected the delay to be attributed to the previously-dispatched task")
	}
	if cur.stats.DelayCount != 0 {
		t.Fatal("the currently-dispatching task must not receive the delay attribution")
	}
}

// I7 (period adherence under no-overload): with exactly one task ready
// at a time, |actual_start_time - scheduled_time| must be 0 for every
// dispatch. This fails if scheduled_time is re-derived from the
// current tick's now instead of the task's own anchored due time.
func TestOnTimeDispatchHasZeroDelay(t *testing.T) {
	s, tb, _, _ := newTestScheduler()
	h := &recordingHooks{}
	id, _ := s.Add("solo", h, TaskConfig{PeriodMs: 10})
	s.Begin(nil)

	for i := 0; i < 10; i++ {
		tb.advance(1)
		s.Tick()
	}

	task := s.findTask(id)
	stats := task.Stats()
	if stats.RunCount != 1 {
		t.Fatalf("RunCount = %d, want exactly one dispatch over 10 ticks", stats.RunCount)
	}
	if stats.ActualStartMs != stats.ScheduledMs {
		t.Fatalf("actual_start_time (%d) != scheduled_time (%d), want equal per I7", stats.ActualStartMs, stats.ScheduledMs)
	}
	if stats.DelayCount != 0 {
		t.Fatalf("DelayCount = %d, want 0 for an on-time dispatch", stats.DelayCount)
	}

	// A second full period should reproduce the same zero-delay result.
	for i := 0; i < 10; i++ {
		tb.advance(1)
		s.Tick()
	}
	stats = task.Stats()
	if stats.RunCount != 2 {
		t.Fatalf("RunCount = %d, want 2 after a second period", stats.RunCount)
	}
	if stats.ActualStartMs != stats.ScheduledMs {
		t.Fatalf("second dispatch: actual_start_time (%d) != scheduled_time (%d)", stats.ActualStartMs, stats.ScheduledMs)
	}
}

func TestTerminateReclaimsTaskAtEndOfDispatch(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	h := &recordingHooks{}
	id, _ := s.Add("short-lived", h, TaskConfig{PeriodMs: 10})
	s.Begin(nil)
	task := s.findTask(id)
	task.remaining = 0
	task.terminate()

	s.dispatch(task)

	if h.terminates != 1 {
		t.Fatalf("OnTerminate called %d times, want exactly 1", h.terminates)
	}
	if s.findTask(id) != nil {
		t.Fatal("terminated task was not unlinked from the scheduler")
	}
	if s.TaskCount() != 0 {
		t.Fatalf("TaskCount() = %d, want 0", s.TaskCount())
	}
}
