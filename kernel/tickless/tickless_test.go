package tickless

import (
	"errors"
	"math/rand"
	"testing"

	"kestrel/hal"
	"kestrel/kernel/kerr"
)

const ms = 1_000_000

func newList(policy Policy) (*List, *hal.Sim) {
	sim := hal.NewSim()
	return New(sim, sim, policy), sim
}

func checkDeadline(t *testing.T, l *List, sim *hal.Sim) {
	t.Helper()
	at, armed := sim.Deadline()
	if l.Len() == 0 {
		if armed {
			t.Fatalf("timer armed at %d with empty list", at)
		}
		return
	}
	if !armed {
		t.Fatalf("timer stopped with %d pending events", l.Len())
	}
	if at != l.Next() {
		t.Fatalf("timer deadline = %d, want %d", at, l.Next())
	}
}

func TestNextExpireOrdering(t *testing.T) {
	l, sim := newList(nil)
	var fired []string
	far := &Event{Kind: KindTimeout, Fire: func(*Event) { fired = append(fired, "far") }}
	near := &Event{Kind: KindTimeout, Fire: func(*Event) { fired = append(fired, "near") }}

	if err := l.Add(far, 5*ms); err != nil {
		t.Fatalf("Add(far) error = %v", err)
	}
	if err := l.Add(near, 2*ms); err != nil {
		t.Fatalf("Add(near) error = %v", err)
	}
	if got := l.Next(); got != 2*ms {
		t.Fatalf("Next() = %d, want %d", got, 2*ms)
	}
	checkDeadline(t, l, sim)

	sim.SetHandler(func() { l.Expire(sim.Now(), nil) })
	sim.Advance(2 * ms)
	if len(fired) != 1 || fired[0] != "near" {
		t.Fatalf("fired = %v, want [near]", fired)
	}
	if got := l.Next(); got != 5*ms {
		t.Fatalf("Next() after first fire = %d, want %d", got, 5*ms)
	}
	checkDeadline(t, l, sim)

	sim.Advance(3 * ms)
	if len(fired) != 2 || fired[1] != "far" {
		t.Fatalf("fired = %v, want [near far]", fired)
	}
	if got := l.Next(); got != 0 {
		t.Fatalf("Next() on empty list = %d, want 0", got)
	}
	checkDeadline(t, l, sim)
}

func TestAddRejects(t *testing.T) {
	l, _ := newList(nil)
	e := &Event{}
	if err := l.Add(e, 0); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("Add(delay 0) error = %v, want InvalidParam", err)
	}
	if err := l.Add(nil, 10); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("Add(nil) error = %v, want InvalidParam", err)
	}
	if err := l.Add(e, 10); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := l.Add(e, 10); !errors.Is(err, kerr.Exists) {
		t.Fatalf("second Add() error = %v, want Exists", err)
	}
}

func TestRemove(t *testing.T) {
	l, sim := newList(nil)
	a, b := &Event{}, &Event{}
	_ = l.Add(a, 1*ms)
	_ = l.Add(b, 3*ms)

	if err := l.Remove(a); err != nil {
		t.Fatalf("Remove(a) error = %v", err)
	}
	if a.Queued() {
		t.Fatalf("a.Queued() = true after Remove")
	}
	checkDeadline(t, l, sim)
	if err := l.Remove(a); !errors.Is(err, kerr.NotFound) {
		t.Fatalf("Remove(a) again error = %v, want NotFound", err)
	}
	if err := l.Remove(b); err != nil {
		t.Fatalf("Remove(b) error = %v", err)
	}
	checkDeadline(t, l, sim)
}

func TestEqualExpiryFIFO(t *testing.T) {
	l, sim := newList(nil)
	var order []int
	for i := 0; i < 4; i++ {
		i := i
		_ = l.Add(&Event{Fire: func(*Event) { order = append(order, i) }}, ms)
	}
	sim.Advance(ms)
	l.Expire(sim.Now(), nil)
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestDeadlineTracksMinimum(t *testing.T) {
	l, sim := newList(nil)
	rng := rand.New(rand.NewSource(7))
	var live []*Event
	sim.SetHandler(func() {
		l.Expire(sim.Now(), func(e *Event) {
			for i, x := range live {
				if x == e {
					live = append(live[:i], live[i+1:]...)
					break
				}
			}
		})
	})

	for step := 0; step < 300; step++ {
		switch rng.Intn(3) {
		case 0:
			e := &Event{Kind: KindTimeout}
			if err := l.Add(e, uint64(rng.Intn(20)+1)*ms/4); err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			live = append(live, e)
		case 1:
			if len(live) > 0 {
				i := rng.Intn(len(live))
				if err := l.Remove(live[i]); err != nil {
					t.Fatalf("Remove() error = %v", err)
				}
				live = append(live[:i], live[i+1:]...)
			}
		case 2:
			sim.Advance(uint64(rng.Intn(4)) * ms / 2)
		}
		if l.Len() != len(live) {
			t.Fatalf("Len() = %d, want %d", l.Len(), len(live))
		}
		checkDeadline(t, l, sim)
	}
}

func TestExpireMayReAdd(t *testing.T) {
	l, sim := newList(nil)
	fires := 0
	e := &Event{Kind: KindTimer}
	e.Fire = func(ev *Event) {
		fires++
		_ = l.AddAt(ev, ev.Expiry+2*ms)
	}
	_ = l.Add(e, 2*ms)
	sim.SetHandler(func() { l.Expire(sim.Now(), nil) })

	sim.Advance(7 * ms)
	if fires != 3 {
		t.Fatalf("fires = %d, want 3", fires)
	}
	if got := l.Next(); got != 8*ms {
		t.Fatalf("Next() = %d, want %d", got, 8*ms)
	}
	checkDeadline(t, l, sim)
}

func TestPolicyCapsPeriod(t *testing.T) {
	l, sim := newList(FixedPolicy(ms))
	_ = l.Add(&Event{}, 5*ms)
	if at, _ := sim.Deadline(); at != ms {
		t.Fatalf("deadline with policy = %d, want %d", at, ms)
	}

	fired := 0
	sim.SetHandler(func() { fired += l.Expire(sim.Now(), nil) })
	sim.Advance(4 * ms)
	if fired != 0 {
		t.Fatalf("fired = %d before the deadline", fired)
	}
	sim.Advance(ms)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if _, armed := sim.Deadline(); armed {
		t.Fatalf("timer still armed after the last event")
	}
}

func TestDefaultPolicy(t *testing.T) {
	tests := []struct {
		pending int
		avg     uint64
		want    uint64
	}{
		{pending: 1, avg: 0, want: 10 * ms},
		{pending: 5, avg: 0, want: ms},
		{pending: 11, avg: 0, want: ms / 10},
		{pending: 5, avg: 200 * ms, want: 20 * ms},
		{pending: 5, avg: 900 * ms, want: ms},
		{pending: 1, avg: 50 * ms, want: 10 * ms},
	}
	for _, tt := range tests {
		if got := DefaultPolicy(tt.pending, tt.avg); got != tt.want {
			t.Fatalf("DefaultPolicy(%d, %d) = %d, want %d", tt.pending, tt.avg, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	l, _ := newList(nil)
	_ = l.Add(&Event{}, 2*ms)
	_ = l.Add(&Event{}, 4*ms)
	s := l.Stats()
	if s.Pending != 2 || s.Added != 2 {
		t.Fatalf("Pending/Added = %d/%d, want 2/2", s.Pending, s.Added)
	}
	if s.MinDelay != 2*ms || s.MaxDelay != 4*ms || s.AvgDelay != 3*ms {
		t.Fatalf("delays min/max/avg = %d/%d/%d, want %d/%d/%d", s.MinDelay, s.MaxDelay, s.AvgDelay, 2*ms, 4*ms, 3*ms)
	}
	if l.Info() == "" {
		t.Fatalf("Info() is empty")
	}
}
