// Command simulate runs the kernel scheduler on a host build of
// platform/host, driving a handful of demo tasks through the
// end-to-end scenarios of a direct message, a fan-out publish, a
// priority tie-break, a task with a declared message budget, and a
// task suspending itself. Nothing in this demo resumes the suspended
// task.
//
// Run:
//
//	go run ./cmd/simulate
package main

import (
	"fmt"

	"github.com/aykutozdemir/fsmos-go/kernel"
	"github.com/aykutozdemir/fsmos-go/platform/host"
)

const topicSensor = 3

// blinkTask counts its steps and publishes the count as a reading on
// the sensor topic every third step.
type blinkTask struct {
	kernel.BaseHooks
	n int
}

func (b *blinkTask) OnStart(ctx *kernel.TaskCtx) {
	fmt.Printf("[%d blink] started, period=%dms\n", ctx.ID(), ctx.Period())
}

func (b *blinkTask) Step(ctx *kernel.TaskCtx) {
	b.n++
	if b.n%3 == 0 {
		if err := ctx.Publish(topicSensor, 1, uint16(b.n)); err != nil {
			fmt.Printf("[%d] publish failed: %v\n", ctx.ID(), err)
		}
	}
}

// loggerTask subscribes to the sensor topic and fans in readings.
type loggerTask struct {
	kernel.BaseHooks
}

func (l *loggerTask) OnStart(ctx *kernel.TaskCtx) {
	ctx.Subscribe(topicSensor)
}

func (l *loggerTask) Step(*kernel.TaskCtx) {}

func (l *loggerTask) OnMsg(ctx *kernel.TaskCtx, rec kernel.Record) {
	fmt.Printf("[%d logger] saw reading arg=%d from topic %d\n", ctx.ID(), rec.Arg, rec.Topic)
}

// watcherTask demonstrates a direct tell and then suspends itself on
// its fourth step; nothing resumes it here, so OnResume does not run.
type watcherTask struct {
	kernel.BaseHooks
	target uint8
	n      int
}

func (w *watcherTask) Step(ctx *kernel.TaskCtx) {
	w.n++
	switch w.n {
	case 2:
		fmt.Printf("[%d watcher] telling %d directly\n", ctx.ID(), w.target)
		_ = ctx.Tell(w.target, 5, 99)
	case 4:
		fmt.Printf("[%d watcher] suspending self\n", ctx.ID())
		ctx.Suspend()
	}
}

func (w *watcherTask) OnResume(ctx *kernel.TaskCtx) {
	fmt.Printf("[%d watcher] resumed\n", ctx.ID())
}

type echoTask struct {
	kernel.BaseHooks
}

func (e *echoTask) Step(*kernel.TaskCtx) {}

func (e *echoTask) OnMsg(ctx *kernel.TaskCtx, rec kernel.Record) {
	fmt.Printf("[%d echo] received direct message type=%d arg=%d\n", ctx.ID(), rec.Type, rec.Arg)
}

func main() {
	fmt.Println("== fsmos-go host simulation ==")

	tb := host.NewTimebase()
	sink := host.NewSink(nil)
	rr := &host.ResetRegister{Flags: 0}
	ni := &host.NoInit{}
	atomic := &host.Atomic{}
	wd := &host.Watchdog{}

	sched := kernel.New(kernel.Adapters{
		Timebase:      tb,
		Sink:          sink,
		Watchdog:      wd,
		ResetRegister: rr,
		NoInit:        ni,
		Atomic:        atomic,
	}, kernel.LevelInfo)

	echoID, err := sched.Add("echo", &echoTask{}, kernel.TaskConfig{PeriodMs: 50, Priority: 1})
	must(err)
	_, err = sched.Add("logger", &loggerTask{}, kernel.TaskConfig{PeriodMs: 20, Priority: 3})
	must(err)
	_, err = sched.Add("blink", &blinkTask{}, kernel.TaskConfig{PeriodMs: 10, Priority: 2})
	must(err)
	_, err = sched.Add("watcher", &watcherTask{target: echoID}, kernel.TaskConfig{PeriodMs: 15, Priority: 2, Budget: 2})
	must(err)

	canary := host.Canary()
	sched.Begin(canary)

	info := sched.ReadResetInfo()
	fmt.Printf("reset cause: %s (raw=%#x)\n", info.Cause, info.ResetReason)

	sched.EnableWatchdog(4000)

	for i := 0; i < 200; i++ {
		sched.Tick()
	}

	fmt.Printf("free stack estimate: %d bytes\n", sched.ScanCanary(canary))
	fmt.Printf("watchdog feeds: %d\n", wd.Feeds())
	for id := uint8(1); id <= uint8(sched.TaskCount()); id++ {
		if stats, ok := sched.TaskStats(id); ok {
			fmt.Printf("task %d: runs=%d max_exec_us=%d delays=%d\n", id, stats.RunCount, stats.MaxExecUs, stats.DelayCount)
		}
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
