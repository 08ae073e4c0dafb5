package kernel

import (
	"kestrel/hal"
	"kestrel/kernel/tickless"
)

// Everything in this file runs with the critical section held unless the
// comment says otherwise.

// readyInsert queues t behind every ready task of equal or better priority.
func (k *Kernel) readyInsert(t *Task) {
	if t.inReady {
		return
	}
	i := k.ready.Index(func(x *Task) bool { return x.prio > t.prio })
	if i < 0 {
		k.ready.PushBack(t)
	} else {
		k.ready.Insert(i, t)
	}
	t.inReady = true
}

func (k *Kernel) readyRemove(t *Task) {
	if !t.inReady {
		return
	}
	if i := k.ready.Index(func(x *Task) bool { return x == t }); i >= 0 {
		k.ready.Remove(i)
	}
	t.inReady = false
}

func (k *Kernel) blockedAdd(t *Task) {
	if t.inBlocked {
		return
	}
	k.blocked.PushBack(t)
	t.inBlocked = true
}

func (k *Kernel) blockedRemove(t *Task) {
	if !t.inBlocked {
		return
	}
	if i := k.blocked.Index(func(x *Task) bool { return x == t }); i >= 0 {
		k.blocked.Remove(i)
	}
	t.inBlocked = false
}

// setEffectivePriority changes the priority t is scheduled at, keeping the
// ready queue ordered.
func (k *Kernel) setEffectivePriority(t *Task, p Priority) {
	if t.prio == p {
		return
	}
	if t.inReady {
		k.readyRemove(t)
		t.prio = p
		k.readyInsert(t)
		return
	}
	t.prio = p
}

// recomputePriority derives t's effective priority from its base priority
// and the mutexes it holds.
func (k *Kernel) recomputePriority(t *Task) {
	p := t.base
	for _, m := range t.held {
		switch m.protocol {
		case Inherit:
			for i := 0; i < m.waiters.len(); i++ {
				if w := m.waiters.at(i); w.prio < p {
					p = w.prio
				}
			}
		case Ceiling:
			if m.ceiling < p {
				p = m.ceiling
			}
		}
	}
	k.setEffectivePriority(t, p)
}

// pick returns the task that should own the CPU: the ready-queue head, the
// current task while the scheduler is locked, or nil for idle.
func (k *Kernel) pick() *Task {
	if k.state != SysRunning {
		return k.current
	}
	cur := k.current
	if k.lockLevel > 0 && cur != nil && cur.state == StateRunning {
		return cur
	}
	if k.ready.Len() == 0 {
		return nil
	}
	return k.ready.Front()
}

// switchTo does the bookkeeping of a switch and makes to current.
func (k *Kernel) switchTo(from, to *Task) {
	now := k.clock.Now()
	if from != nil {
		if from.state == StateRunning {
			from.state = StateReady
		}
		if now > from.lastRun {
			from.runtime += now - from.lastRun
		}
		if from.flags&FlagStackCheck != 0 && from.state != StateDeleted {
			k.checkStack(from)
		}
	}
	if k.slice.Queued() {
		_ = k.events.Remove(&k.slice)
	}

	k.current = to
	k.stats.Switches++
	if to == nil {
		k.stats.IdleEntries++
		return
	}
	to.state = StateRunning
	to.switches++
	to.lastRun = now
	if to.flags&FlagTimeslice != 0 {
		_ = k.events.Add(&k.slice, to.timeslice)
	}
}

// schedule hands the CPU to pick() if that is not the current task. It is
// entered with the critical section held and returns with it released. The
// caller must be the current task, or no task may be current (idle,
// interrupt, or before Start); in the latter case the chosen task is
// dispatched and schedule returns immediately.
func (k *Kernel) schedule(st hal.CriticalState) {
	for {
		from, to := k.current, k.pick()
		if from == to {
			k.crit.Exit(st)
			return
		}
		k.switchTo(from, to)
		hook, idle := k.switchHook, k.idleHook
		k.crit.Exit(st)

		runHooks(hook, idle, from, to)
		if from == nil {
			k.sw.Switch(hal.NoContext, to.id)
			return
		}
		toID := hal.NoContext
		if to != nil {
			toID = to.id
		}
		// Parks until from is switched back in.
		k.sw.Switch(from.id, toID)
		st = k.crit.Enter()
	}
}

// isrExit releases the critical section at the end of interrupt-context
// work. An idle CPU is dispatched at once; a running task takes the pending
// switch at its next kernel call.
func (k *Kernel) isrExit(st hal.CriticalState) {
	if k.current != nil {
		if k.pick() != k.current {
			k.stats.PendingSwitches++
		}
		k.crit.Exit(st)
		return
	}
	k.schedule(st)
}

// runHooks calls the switch and idle hooks. Called without the critical
// section.
func runHooks(hook func(from, to *Task), idle func(), from, to *Task) {
	if hook != nil {
		hook(from, to)
	}
	if to == nil && from != nil && idle != nil {
		idle()
	}
}

// block parks the current task on q (nil for a plain delay) until it is
// woken or timeout passes, and returns the wake result. Entered with the
// critical section held; returns with it released.
func (k *Kernel) block(st hal.CriticalState, q *waitQueue, owner waiter, timeout uint64) error {
	t := k.current
	k.readyRemove(t)
	t.state = StateBlocked
	t.wait.owner = owner
	t.wait.result = nil
	if q != nil {
		q.push(t)
	}
	k.blockedAdd(t)
	if timeout != Forever {
		t.event.Kind = tickless.KindTimeout
		if q == nil {
			t.event.Kind = tickless.KindTaskDelay
		}
		_ = k.events.Add(&t.event, timeout)
	}
	k.schedule(st)
	return t.wait.result
}

// wake ends t's wait with result and makes it ready (or ready-on-resume if
// it is suspended).
func (k *Kernel) wake(t *Task, result error) {
	if q := t.wait.queue; q != nil {
		q.remove(t)
	}
	if t.event.Queued() {
		_ = k.events.Remove(&t.event)
	}
	k.blockedRemove(t)
	t.wait.result = result
	switch t.state {
	case StateBlocked:
		t.state = StateReady
		k.readyInsert(t)
	case StateSuspended:
		if t.resumeState == StateBlocked {
			t.resumeState = StateReady
		}
	}
}

// sliceExpired rotates the current task behind its equal-priority peers.
func (k *Kernel) sliceExpired(*tickless.Event) {
	t := k.current
	if t == nil || t.flags&FlagTimeslice == 0 {
		return
	}
	i := k.ready.Index(func(x *Task) bool { return x == t })
	if i >= 0 && i+1 < k.ready.Len() && k.ready.At(i+1).prio == t.prio {
		k.readyRemove(t)
		k.readyInsert(t)
		k.stats.SliceRotations++
		return
	}
	_ = k.events.Add(&k.slice, t.timeslice)
}

// LockScheduler suppresses voluntary task switches and returns the previous
// lock level for UnlockScheduler. Locks nest.
func (k *Kernel) LockScheduler() uint32 {
	st := k.crit.Enter()
	prev := k.lockLevel
	k.lockLevel++
	k.crit.Exit(st)
	return prev
}

// UnlockScheduler restores the lock level returned by LockScheduler and
// reschedules once it reaches zero.
func (k *Kernel) UnlockScheduler(level uint32) {
	st := k.crit.Enter()
	k.lockLevel = level
	if level == 0 {
		k.schedule(st)
		return
	}
	k.crit.Exit(st)
}

// SchedulerLocked reports whether switches are suppressed.
func (k *Kernel) SchedulerLocked() bool {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.lockLevel > 0
}
