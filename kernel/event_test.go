package kernel

import (
	"errors"
	"testing"

	"kestrel/kernel/kerr"
)

func TestEventGroupImmediate(t *testing.T) {
	h := newHarness(t, Config{})
	g, err := h.k.NewEventGroup("g")
	if err != nil {
		t.Fatalf("NewEventGroup() error = %v", err)
	}
	if _, err := g.Wait(0, 0, NoWait); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("Wait(mask=0) = %v, want %v", err, kerr.InvalidParam)
	}
	if v, _ := g.Set(Bit(0) | Bit(2)); v != 0b101 {
		t.Fatalf("Set() = %#b, want 0b101", v)
	}
	if v, err := g.Wait(0b011, 0, NoWait); err != nil || v != 0b001 {
		t.Fatalf("Wait(any) = %#b, %v, want 0b1, nil", v, err)
	}
	if _, err := g.Wait(0b011, WaitAll, NoWait); !errors.Is(err, kerr.Timeout) {
		t.Fatalf("Wait(all) unsatisfied = %v, want %v", err, kerr.Timeout)
	}
	if v, err := g.Wait(0b111, ClearOnExit, NoWait); err != nil || v != 0b101 {
		t.Fatalf("Wait(clear) = %#b, %v, want 0b101, nil", v, err)
	}
	if got := g.Bits(); got != 0 {
		t.Fatalf("Bits() after clear-on-exit = %#b, want 0", got)
	}
}

func TestEventGroupQueries(t *testing.T) {
	h := newHarness(t, Config{})
	g, _ := h.k.NewEventGroup("g")
	_, _ = g.Set(0b1100)

	if !g.IsSet(0b0100) || g.IsSet(0b0110) {
		t.Fatalf("IsSet() wrong for bits %#b", g.Bits())
	}
	if !g.IsClear(0b0011) || g.IsClear(0b0110) {
		t.Fatalf("IsClear() wrong for bits %#b", g.Bits())
	}
	if !g.BitIsSet(3) || !g.BitIsClear(0) || g.BitIsSet(32) {
		t.Fatalf("BitIsSet/BitIsClear wrong for bits %#b", g.Bits())
	}
	if Bit(32) != 0 || Bit(31) != 1<<31 {
		t.Fatalf("Bit() out of range handling wrong")
	}
	if v, _ := g.Clear(0b0100); v != 0b1000 {
		t.Fatalf("Clear() = %#b, want 0b1000", v)
	}
	if _, err := g.Sync(0); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("Sync(0) = %v, want %v", err, kerr.InvalidParam)
	}
	if v, _ := g.Sync(0b1001); v != 0b1001 {
		t.Fatalf("Sync() = %#b, want 0b1001", v)
	}
	if err := g.Reset(0b1); err != nil || g.Bits() != 0b1 {
		t.Fatalf("Reset() = %v, bits %#b", err, g.Bits())
	}
}

func TestEventGroupSelectiveWake(t *testing.T) {
	h := newHarness(t, Config{})
	g, _ := h.k.NewEventGroup("g")
	var tr trace
	wait := func(name string, mask uint32, opts WaitOpts) {
		h.spawn(name, PriorityNormal, func() {
			v, err := g.Wait(mask, opts, Forever)
			tr.add("%s:%#b:%v", name, v, err)
		})
	}
	wait("all", 0b011, WaitAll|ClearOnExit)
	wait("any", 0b110, 0)
	wait("other", 0b1000, 0)
	h.start()

	if got := g.WaitCount(); got != 3 {
		t.Fatalf("WaitCount() = %d, want 3", got)
	}
	if err := g.Reset(0); !errors.Is(err, kerr.Busy) {
		t.Fatalf("Reset() with waiters = %v, want %v", err, kerr.Busy)
	}

	_, _ = g.SetFromISR(0b001)
	h.settle()
	if got := tr.String(); got != "" {
		t.Fatalf("woke on partial set: %q", got)
	}

	v, _ := g.Set(0b010)
	h.settle()
	if got, want := tr.String(), "all:0b11:<nil> any:0b10:<nil>"; got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
	if v != 0b000 || g.Bits() != 0 {
		t.Fatalf("bits after clear-on-exit = %#b (Set returned %#b), want 0", g.Bits(), v)
	}
	if got := g.WaitCount(); got != 1 {
		t.Fatalf("WaitCount() = %d, want 1", got)
	}
}

func TestEventGroupWaitTimeout(t *testing.T) {
	h := newHarness(t, Config{})
	g, _ := h.k.NewEventGroup("g")
	var got error
	h.spawn("w", PriorityNormal, func() {
		_, got = g.Wait(0b1, 0, 4*ms)
	})
	h.start()
	h.advance(5 * ms)

	if !errors.Is(got, kerr.Timeout) {
		t.Fatalf("Wait() = %v, want %v", got, kerr.Timeout)
	}
	if st := g.Stats(); st.Timeouts != 1 || st.Waiters != 0 {
		t.Fatalf("Stats() = %+v, want 1 timeout and no waiters", st)
	}
	if err := g.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := g.Set(1); !errors.Is(err, kerr.Deleted) {
		t.Fatalf("Set() after Delete = %v, want %v", err, kerr.Deleted)
	}
}
