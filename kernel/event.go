package kernel

import "kestrel/kernel/kerr"

// Bit returns the mask for event bit n, or 0 when n is out of range.
func Bit(n uint) uint32 {
	if n > 31 {
		return 0
	}
	return 1 << n
}

// EventGroup is a 32-bit event flag word tasks can wait on.
type EventGroup struct {
	Object

	k       *Kernel
	bits    uint32
	waiters waitQueue
	stats   EventStats
}

// EventStats are event group counters.
type EventStats struct {
	Bits     uint32
	Sets     uint64
	Clears   uint64
	Waits    uint64
	Wakeups  uint64
	Timeouts uint64
	Waiters  int
}

// NewEventGroup creates an event group with every bit clear.
func (k *Kernel) NewEventGroup(name string) (*EventGroup, error) {
	g := &EventGroup{k: k}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.groups.add(g); err != nil {
		return nil, err
	}
	k.initObject(&g.Object, TypeEventGroup, name, ObjDynamic)
	return g, nil
}

func satisfied(bits, mask uint32, opts WaitOpts) bool {
	if opts&WaitAll != 0 {
		return bits&mask == mask
	}
	return bits&mask != 0
}

// Wait blocks until any (or, with WaitAll, every) bit of mask is set and
// returns the masked bits seen at that moment. ClearOnExit clears the
// satisfying bits.
func (g *EventGroup) Wait(mask uint32, opts WaitOpts, timeout uint64) (uint32, error) {
	if g == nil || mask == 0 {
		return 0, kerr.InvalidParam
	}
	k := g.k
	st := k.crit.Enter()
	if g.deleted {
		k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	g.stats.Waits++
	if satisfied(g.bits, mask, opts) {
		v := g.bits & mask
		if opts&ClearOnExit != 0 {
			g.bits &^= v
		}
		k.schedule(st)
		return v, nil
	}
	if err := k.checkBlock(timeout); err != nil {
		if err == kerr.Timeout {
			g.stats.Timeouts++
		}
		k.crit.Exit(st)
		return 0, err
	}
	t := k.current
	t.wait.obj = &g.Object
	t.wait.mask = mask
	t.wait.opts = opts
	t.wait.value = 0
	if err := k.block(st, &g.waiters, g, timeout); err != nil {
		return 0, err
	}
	return t.wait.value, nil
}

// Set ORs bits into the group, wakes every waiter it satisfies and returns
// the resulting bits.
func (g *EventGroup) Set(bits uint32) (uint32, error) {
	if g == nil {
		return 0, kerr.InvalidParam
	}
	st := g.k.crit.Enter()
	if g.deleted {
		g.k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	v := g.set(bits)
	g.k.schedule(st)
	return v, nil
}

// SetFromISR is Set for interrupt handlers and goroutines outside the
// kernel.
func (g *EventGroup) SetFromISR(bits uint32) (uint32, error) {
	if g == nil {
		return 0, kerr.InvalidParam
	}
	st := g.k.crit.Enter()
	if g.deleted {
		g.k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	v := g.set(bits)
	g.k.isrExit(st)
	return v, nil
}

// Sync sets only those bits that are not already set.
func (g *EventGroup) Sync(bits uint32) (uint32, error) {
	if g == nil || bits == 0 {
		return 0, kerr.InvalidParam
	}
	st := g.k.crit.Enter()
	if g.deleted {
		g.k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	v := g.bits
	if missing := bits &^ g.bits; missing != 0 {
		v = g.set(missing)
	}
	g.k.schedule(st)
	return v, nil
}

// set applies bits and resolves waiters in FIFO order against the result.
// Clear-on-exit bits are removed once every waiter has been looked at.
func (g *EventGroup) set(bits uint32) uint32 {
	g.bits |= bits
	g.stats.Sets++

	var clearBits uint32
	for i := 0; i < g.waiters.len(); {
		t := g.waiters.at(i)
		if !satisfied(g.bits, t.wait.mask, t.wait.opts) {
			i++
			continue
		}
		t.wait.value = g.bits & t.wait.mask
		if t.wait.opts&ClearOnExit != 0 {
			clearBits |= t.wait.value
		}
		g.stats.Wakeups++
		g.k.wake(t, nil)
	}
	g.bits &^= clearBits
	return g.bits
}

// Clear clears bits and returns the resulting bits.
func (g *EventGroup) Clear(bits uint32) (uint32, error) {
	if g == nil {
		return 0, kerr.InvalidParam
	}
	var v uint32
	err := g.k.withObject(&g.Object, func() error {
		g.bits &^= bits
		g.stats.Clears++
		v = g.bits
		return nil
	})
	return v, err
}

func (g *EventGroup) waitAborted(*Task) { g.stats.Timeouts++ }

// Bits returns the current flag word.
func (g *EventGroup) Bits() uint32 {
	st := g.k.crit.Enter()
	defer g.k.crit.Exit(st)
	return g.bits
}

// IsSet reports whether every bit of bits is set.
func (g *EventGroup) IsSet(bits uint32) bool { return g.Bits()&bits == bits }

// IsClear reports whether every bit of bits is clear.
func (g *EventGroup) IsClear(bits uint32) bool { return g.Bits()&bits == 0 }

func (g *EventGroup) BitIsSet(n uint) bool {
	b := Bit(n)
	return b != 0 && g.IsSet(b)
}

func (g *EventGroup) BitIsClear(n uint) bool {
	b := Bit(n)
	return b != 0 && g.IsClear(b)
}

// WaitCount returns the number of waiting tasks.
func (g *EventGroup) WaitCount() int {
	st := g.k.crit.Enter()
	defer g.k.crit.Exit(st)
	return g.waiters.len()
}

// Reset replaces the flag word. It fails with Busy while tasks wait.
func (g *EventGroup) Reset(bits uint32) error {
	if g == nil {
		return kerr.InvalidParam
	}
	return g.k.withObject(&g.Object, func() error {
		if !g.waiters.empty() {
			return kerr.Busy
		}
		g.bits = bits
		return nil
	})
}

// Delete removes the group. It fails with Busy while tasks wait.
func (g *EventGroup) Delete() error {
	if g == nil {
		return kerr.InvalidParam
	}
	return g.k.withObject(&g.Object, func() error {
		if !g.waiters.empty() {
			return kerr.Busy
		}
		_ = g.k.groups.remove(g)
		g.k.dropObject(&g.Object)
		return nil
	})
}

// Stats returns a snapshot of the counters.
func (g *EventGroup) Stats() EventStats {
	st := g.k.crit.Enter()
	defer g.k.crit.Exit(st)
	out := g.stats
	out.Bits = g.bits
	out.Waiters = g.waiters.len()
	return out
}
