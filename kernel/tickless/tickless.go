// Package tickless keeps the ordered list of pending time events and drives
// the single hardware timer from it. The timer is always programmed for the
// earliest pending expiry (or for the delay policy's granularity, if that is
// shorter) and is stopped when nothing is pending.
package tickless

import (
	"fmt"
	"strings"

	"github.com/gammazero/deque"

	"kestrel/hal"
	"kestrel/kernel/kerr"
)

// Kind tells the dispatcher what an expired event stands for.
type Kind uint8

const (
	KindTaskDelay Kind = iota + 1
	KindTimer
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTaskDelay:
		return "task_delay"
	case KindTimer:
		return "timer"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event is one pending deadline. The zero value is ready to be added.
type Event struct {
	// Expiry is the absolute deadline in clock nanoseconds. Set by the List.
	Expiry uint64
	Kind   Kind
	Target any
	Fire   func(*Event)

	queued bool
}

// Queued reports whether the event is in a list.
func (e *Event) Queued() bool { return e.queued }

// Stats describes list activity and the requested delays seen so far.
type Stats struct {
	Pending    int
	Added      uint64
	Fired      uint64
	Reprograms uint64
	Stops      uint64

	MinDelay uint64
	MaxDelay uint64
	AvgDelay uint64
}

// List is the ascending deadline list. It is not safe for concurrent use.
type List struct {
	clock  hal.Clock
	timer  hal.Timer
	policy Policy

	events deque.Deque[*Event]

	programmed uint64
	armed      bool
	expiring   bool

	stats Stats
}

// New returns an empty list driving timer. A nil policy programs the timer
// for the exact next deadline.
func New(clock hal.Clock, timer hal.Timer, policy Policy) *List {
	return &List{clock: clock, timer: timer, policy: policy}
}

// SetPolicy replaces the delay policy and reprograms the timer.
func (l *List) SetPolicy(p Policy) {
	l.policy = p
	l.program()
}

// Add schedules e to expire delay nanoseconds from now.
func (l *List) Add(e *Event, delay uint64) error {
	if e == nil || delay == 0 {
		return kerr.InvalidParam
	}
	now := l.clock.Now()
	expiry := now + delay
	if expiry < now {
		expiry = ^uint64(0)
	}
	return l.insert(e, expiry, delay)
}

// AddAt schedules e at an absolute expiry. An expiry in the past fires on the
// next Expire.
func (l *List) AddAt(e *Event, expiry uint64) error {
	if e == nil {
		return kerr.InvalidParam
	}
	var delay uint64
	if now := l.clock.Now(); expiry > now {
		delay = expiry - now
	}
	return l.insert(e, expiry, delay)
}

func (l *List) insert(e *Event, expiry, delay uint64) error {
	if e.queued {
		return kerr.Exists
	}
	e.Expiry = expiry
	e.queued = true

	// Equal expiries keep insertion order.
	idx := l.events.Index(func(x *Event) bool { return x.Expiry > expiry })
	if idx < 0 {
		l.events.PushBack(e)
	} else {
		l.events.Insert(idx, e)
	}
	l.record(delay)

	if l.events.Front() == e || l.policy != nil {
		l.program()
	}
	return nil
}

func (l *List) record(delay uint64) {
	s := &l.stats
	s.Added++
	if s.Added == 1 || delay < s.MinDelay {
		s.MinDelay = delay
	}
	if delay > s.MaxDelay {
		s.MaxDelay = delay
	}
	s.AvgDelay = (s.AvgDelay*(s.Added-1) + delay) / s.Added
}

// Remove unlinks e.
func (l *List) Remove(e *Event) error {
	if e == nil {
		return kerr.InvalidParam
	}
	if !e.queued {
		return kerr.NotFound
	}
	idx := l.events.Index(func(x *Event) bool { return x == e })
	if idx < 0 {
		e.queued = false
		return kerr.NotFound
	}
	l.events.Remove(idx)
	e.queued = false
	if idx == 0 || l.policy != nil {
		l.program()
	}
	return nil
}

// Len returns the number of pending events.
func (l *List) Len() int { return l.events.Len() }

// Next returns the earliest pending expiry, or 0 when nothing is pending.
func (l *List) Next() uint64 {
	if l.events.Len() == 0 {
		return 0
	}
	return l.events.Front().Expiry
}

// NextDelay returns the time until the earliest expiry, or 0.
func (l *List) NextDelay() uint64 {
	next := l.Next()
	if next == 0 {
		return 0
	}
	if now := l.clock.Now(); next > now {
		return next - now
	}
	return 0
}

// Expire pops every event with Expiry <= now in deadline order and passes it
// to fn (or to its own Fire when fn is nil), then reprograms the timer for
// the new earliest event or stops it. fn may add events.
func (l *List) Expire(now uint64, fn func(*Event)) int {
	l.expiring = true
	n := 0
	for l.events.Len() > 0 {
		e := l.events.Front()
		if e.Expiry > now {
			break
		}
		l.events.PopFront()
		e.queued = false
		n++
		l.stats.Fired++
		switch {
		case fn != nil:
			fn(e)
		case e.Fire != nil:
			e.Fire(e)
		}
	}
	l.expiring = false
	l.program()
	return n
}

// Programmed returns the absolute deadline the timer was last set for.
func (l *List) Programmed() (deadline uint64, armed bool) {
	return l.programmed, l.armed
}

func (l *List) program() {
	if l.expiring {
		return
	}
	if l.events.Len() == 0 {
		if l.armed {
			l.timer.Stop()
			l.stats.Stops++
		}
		l.armed = false
		l.programmed = 0
		return
	}

	now := l.clock.Now()
	next := l.events.Front().Expiry
	var d uint64
	if next > now {
		d = next - now
	}
	if l.policy != nil {
		if g := l.policy(l.events.Len(), l.stats.AvgDelay); g > 0 && g < d {
			d = g
		}
	}
	l.timer.Set(d)
	l.programmed = now + d
	l.armed = true
	l.stats.Reprograms++
}

// Stats returns a snapshot of list statistics.
func (l *List) Stats() Stats {
	s := l.stats
	s.Pending = l.events.Len()
	return s
}

// ResetStats clears the counters and delay history.
func (l *List) ResetStats() {
	l.stats = Stats{}
}

// Info formats the list state for diagnostics.
func (l *List) Info() string {
	s := l.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "tickless: pending=%d next=%d armed=%t", s.Pending, l.Next(), l.armed)
	fmt.Fprintf(&b, " added=%d fired=%d reprograms=%d stops=%d", s.Added, s.Fired, s.Reprograms, s.Stops)
	fmt.Fprintf(&b, " delay(min/avg/max)=%d/%d/%dns", s.MinDelay, s.AvgDelay, s.MaxDelay)
	return b.String()
}
