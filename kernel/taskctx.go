// kernel/taskctx.go
package kernel

// TaskCtx is the handle threaded into every TaskHooks call, giving a
// task access to the scheduler capabilities the original C++ Task base
// class inherited (tell, publish, subscribe, suspend, ...) without a
// process-wide singleton.
type TaskCtx struct {
	sched *Scheduler
	task  *Task
}

// ID returns the calling task's id.
func (c *TaskCtx) ID() uint8 { return c.task.id }

// IsActive reports whether the calling task is currently active.
func (c *TaskCtx) IsActive() bool { return c.task.state == Active }

// Period returns the calling task's current period in milliseconds.
func (c *TaskCtx) Period() uint16 { return c.task.periodMs }

// SetPeriod changes the calling task's period, clamped to
// [MinTaskPeriodMs, MaxTaskPeriodMs]. It takes effect on the next
// dispatch cycle.
func (c *TaskCtx) SetPeriod(ms uint16) { c.task.periodMs = clampPeriod(ms) }

// Subscribe sets the calling task's bit for topic. Topic 0 and topics
// >= MaxTopics are ignored silently (spec §4.4).
func (c *TaskCtx) Subscribe(topic uint8) { c.task.subscribe(topic) }

// Unsubscribe clears the calling task's bit for topic.
func (c *TaskCtx) Unsubscribe(topic uint8) { c.task.unsubscribe(topic) }

// IsSubscribedTo reports the calling task's subscription bit for topic.
func (c *TaskCtx) IsSubscribedTo(topic uint8) bool { return c.task.isSubscribed(topic) }

// Tell enqueues a direct message (topic 0) to dst. It fails (returning
// a non-nil error) if the message pool or the global queue is
// exhausted, or if dst names no admitted task.
func (c *TaskCtx) Tell(dst uint8, typ uint8, arg uint16) error {
	return c.sched.tell(c.task.id, dst, typ, arg)
}

// Publish enqueues one message on topic that fans out to every
// subscriber at delivery time. It fails if topic is 0 or out of range,
// if there are currently no subscribers, or if the pool/queue is
// exhausted.
func (c *TaskCtx) Publish(topic, typ uint8, arg uint16) error {
	return c.sched.publish(c.task.id, topic, typ, arg)
}

// Suspend transitions the calling task ACTIVE -> SUSPENDED.
func (c *TaskCtx) Suspend() { c.task.suspend(c) }

// Resume transitions the calling task SUSPENDED -> ACTIVE. It reports
// false if the task was not suspended.
func (c *TaskCtx) Resume() bool { return c.task.resume(c) }

// Stop transitions the calling task to INACTIVE.
func (c *TaskCtx) Stop() { c.task.stop(c) }

// Terminate marks the calling task TERMINATED; the scheduler invokes
// OnTerminate and reclaims it at the end of the current tick.
func (c *TaskCtx) Terminate() { c.task.terminate() }
