package kernel

import (
	"kestrel/kernel/kerr"
	"kestrel/kernel/tickless"
)

// TimerFunc is a software timer callback. It runs on the timer service task.
type TimerFunc func(t *Timer, arg any)

// TimerParams describe a software timer.
type TimerParams struct {
	Name       string
	Period     uint64
	AutoReload bool
	Callback   TimerFunc
	Arg        any
}

// Timer is a one-shot or periodic software timer driven by the tick-less
// event list.
type Timer struct {
	Object

	k          *Kernel
	period     uint64
	autoReload bool
	callback   TimerFunc
	arg        any

	event   tickless.Event
	running bool
	due     bool
	stats   TimerStats
}

// TimerStats are software timer counters.
type TimerStats struct {
	Period      uint64
	Running     bool
	Triggers    uint64
	LastTrigger uint64
	Missed      uint64
}

// NewTimer creates a stopped timer.
func (k *Kernel) NewTimer(p TimerParams) (*Timer, error) {
	if p.Period == 0 || p.Callback == nil {
		return nil, kerr.InvalidParam
	}
	tm := &Timer{
		k:          k,
		period:     p.Period,
		autoReload: p.AutoReload,
		callback:   p.Callback,
		arg:        p.Arg,
	}
	tm.event = tickless.Event{Kind: tickless.KindTimer, Target: tm, Fire: k.timerExpired}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.timers.add(tm); err != nil {
		return nil, err
	}
	k.initObject(&tm.Object, TypeTimer, p.Name, ObjDynamic)
	return tm, nil
}

// Start arms the timer one period from now.
func (tm *Timer) Start() error {
	return tm.locked(func() error {
		if tm.running {
			return kerr.Exists
		}
		tm.arm()
		return nil
	})
}

// Stop disarms the timer and drops a callback that has not run yet.
func (tm *Timer) Stop() error {
	return tm.locked(func() error {
		if !tm.running {
			return kerr.NotFound
		}
		tm.disarm()
		return nil
	})
}

// Reset restarts the period from now, starting the timer if needed.
func (tm *Timer) Reset() error {
	return tm.locked(func() error {
		tm.disarm()
		tm.arm()
		return nil
	})
}

// SetPeriod changes the period. A running timer restarts with it.
func (tm *Timer) SetPeriod(period uint64) error {
	if period == 0 {
		return kerr.InvalidParam
	}
	return tm.locked(func() error {
		tm.period = period
		if tm.running {
			tm.disarm()
			tm.arm()
		}
		return nil
	})
}

// Delete stops and removes the timer.
func (tm *Timer) Delete() error {
	return tm.locked(func() error {
		tm.disarm()
		_ = tm.k.timers.remove(tm)
		tm.k.dropObject(&tm.Object)
		return nil
	})
}

// Running reports whether the timer is armed.
func (tm *Timer) Running() bool {
	st := tm.k.crit.Enter()
	defer tm.k.crit.Exit(st)
	return tm.running
}

// Period returns the period in nanoseconds.
func (tm *Timer) Period() uint64 {
	st := tm.k.crit.Enter()
	defer tm.k.crit.Exit(st)
	return tm.period
}

// Remaining returns the time until the next expiry, or 0 when the timer is
// stopped or already due.
func (tm *Timer) Remaining() uint64 {
	st := tm.k.crit.Enter()
	defer tm.k.crit.Exit(st)
	if !tm.running || !tm.event.Queued() {
		return 0
	}
	if now := tm.k.clock.Now(); tm.event.Expiry > now {
		return tm.event.Expiry - now
	}
	return 0
}

// Stats returns a snapshot of the counters.
func (tm *Timer) Stats() TimerStats {
	st := tm.k.crit.Enter()
	defer tm.k.crit.Exit(st)
	out := tm.stats
	out.Period = tm.period
	out.Running = tm.running
	return out
}

func (tm *Timer) locked(fn func() error) error {
	if tm == nil {
		return kerr.InvalidParam
	}
	return tm.k.withObject(&tm.Object, fn)
}

func (tm *Timer) arm() {
	_ = tm.k.events.Add(&tm.event, tm.period)
	tm.running = true
}

func (tm *Timer) disarm() {
	if tm.event.Queued() {
		_ = tm.k.events.Remove(&tm.event)
	}
	tm.running = false
	if tm.due {
		tm.due = false
		if i := tm.k.timerDue.Index(func(x *Timer) bool { return x == tm }); i >= 0 {
			tm.k.timerDue.Remove(i)
		}
	}
}

// timerExpired does the interrupt-side bookkeeping of a timer and queues its
// callback for the service task. A periodic timer re-arms from its previous
// expiry so the period does not drift.
func (k *Kernel) timerExpired(e *tickless.Event) {
	tm := e.Target.(*Timer)
	tm.stats.Triggers++
	tm.stats.LastTrigger = e.Expiry
	if tm.autoReload {
		_ = k.events.AddAt(&tm.event, e.Expiry+tm.period)
	} else {
		tm.running = false
	}

	if tm.due {
		tm.stats.Missed++
	} else {
		tm.due = true
		k.timerDue.PushBack(tm)
	}
	k.wakeFirst(&k.timerWait, nil)
}

// timerService is the entry of the timer service task.
func (k *Kernel) timerService(any) {
	for {
		st := k.crit.Enter()
		if k.timerDue.Len() == 0 {
			_ = k.block(st, &k.timerWait, nil, Forever)
			continue
		}
		tm := k.timerDue.PopFront()
		tm.due = false
		fn, arg := tm.callback, tm.arg
		k.crit.Exit(st)

		fn(tm, arg)
	}
}
