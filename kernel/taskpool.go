// kernel/taskpool.go
package kernel

// taskPool is the lazily initialized free-list of task nodes backing
// Scheduler.Add (spec §4.5). Its capacity is fixed at MaxTopics, the
// same hard cap admission already enforces on task_count, so "expands
// by one when the free-list empties" degenerates to handing out one of
// a pre-allocated array's slots rather than growing without bound.
type taskPool struct {
	slots [MaxTopics]Task
	free  []*Task
	init  bool
}

func (p *taskPool) ensureInit() {
	if p.init {
		return
	}
	p.free = make([]*Task, 0, MaxTopics)
	for i := range p.slots {
		p.free = append(p.free, &p.slots[i])
	}
	p.init = true
}

func (p *taskPool) acquire() *Task {
	p.ensureInit()
	n := len(p.free)
	if n == 0 {
		return nil
	}
	t := p.free[n-1]
	p.free = p.free[:n-1]
	return t
}

func (p *taskPool) release(t *Task) {
	*t = Task{}
	p.free = append(p.free, t)
}
