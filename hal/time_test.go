package hal

import (
	"testing"
	"time"
)

func TestOneShotTimerFires(t *testing.T) {
	var tm OneShotTimer
	fired := make(chan struct{}, 4)
	tm.SetHandler(func() { fired <- struct{}{} })

	tm.Set(uint64(time.Millisecond))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if r := tm.Remaining(); r != 0 {
		t.Fatalf("Remaining after fire = %d, want 0", r)
	}
}

func TestOneShotTimerStopAndRearm(t *testing.T) {
	var tm OneShotTimer
	fired := make(chan struct{}, 4)
	tm.SetHandler(func() { fired <- struct{}{} })

	tm.Set(uint64(20 * time.Millisecond))
	if tm.Remaining() == 0 {
		t.Fatalf("Remaining = 0 while armed")
	}
	tm.Stop()
	tm.Set(uint64(time.Hour))
	tm.Set(uint64(time.Millisecond))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("rearmed timer did not fire")
	}
	select {
	case <-fired:
		t.Fatalf("superseded deadline fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOneShotTimerHugeDelay(t *testing.T) {
	var tm OneShotTimer
	fired := make(chan struct{}, 1)
	tm.SetHandler(func() { fired <- struct{}{} })

	tm.Set(^uint64(0) - 1)
	defer tm.Stop()
	select {
	case <-fired:
		t.Fatalf("timer set far in the future fired at once")
	case <-time.After(20 * time.Millisecond):
	}
	if tm.Remaining() == 0 {
		t.Fatalf("Remaining = 0 while armed")
	}
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	if b := c.Now(); b <= a {
		t.Fatalf("Now went from %d to %d", a, b)
	}
}
