package kernel

import "kestrel/kernel/kerr"

// Protocol selects how a mutex fights priority inversion.
type Protocol uint8

const (
	// NoProtocol leaves the owner's priority alone.
	NoProtocol Protocol = iota
	// Inherit raises the owner to its best waiter's priority.
	Inherit
	// Ceiling raises the owner to a fixed ceiling while it holds the mutex.
	Ceiling
)

func (p Protocol) String() string {
	switch p {
	case NoProtocol:
		return "none"
	case Inherit:
		return "inherit"
	case Ceiling:
		return "ceiling"
	default:
		return "unknown"
	}
}

// maxInheritDepth bounds how far a boost propagates through owners that are
// themselves blocked on mutexes.
const maxInheritDepth = 8

// MutexParams describe a mutex to create.
type MutexParams struct {
	Name      string
	Recursive bool
	Protocol  Protocol
	// Ceiling is the priority owners run at under the Ceiling protocol.
	Ceiling Priority
}

// Mutex is an owned lock with optional recursion and priority protection.
type Mutex struct {
	Object

	k         *Kernel
	owner     *Task
	count     uint32
	recursive bool
	protocol  Protocol
	ceiling   Priority
	waiters   waitQueue
	stats     MutexStats
}

// MutexStats are mutex counters.
type MutexStats struct {
	Locks       uint64
	Unlocks     uint64
	Contentions uint64
	Timeouts    uint64
	Boosts      uint64
	Waiters     int
	Owner       string
	LockCount   uint32
}

// NewMutex creates an unlocked mutex.
func (k *Kernel) NewMutex(p MutexParams) (*Mutex, error) {
	if p.Protocol > Ceiling || int(p.Ceiling) >= MaxPriority {
		return nil, kerr.InvalidParam
	}
	m := &Mutex{
		k:         k,
		recursive: p.Recursive,
		protocol:  p.Protocol,
		ceiling:   p.Ceiling,
	}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.mutexes.add(m); err != nil {
		return nil, err
	}
	k.initObject(&m.Object, TypeMutex, p.Name, ObjDynamic)
	return m, nil
}

// Lock acquires the mutex for the calling task, waiting up to timeout.
func (m *Mutex) Lock(timeout uint64) error {
	if m == nil {
		return kerr.InvalidParam
	}
	k := m.k
	st := k.crit.Enter()
	if m.deleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	t := k.current
	if t == nil {
		k.crit.Exit(st)
		return kerr.InvalidParam
	}
	if m.protocol == Ceiling && t.base < m.ceiling {
		k.crit.Exit(st)
		return kerr.InvalidParam
	}

	switch m.owner {
	case nil:
		m.acquire(t)
		k.schedule(st)
		return nil
	case t:
		if !m.recursive {
			k.crit.Exit(st)
			return kerr.Deadlock
		}
		m.count++
		m.stats.Locks++
		k.crit.Exit(st)
		return nil
	}

	m.stats.Contentions++
	if err := k.checkBlock(timeout); err != nil {
		if err == kerr.Timeout {
			m.stats.Timeouts++
		}
		k.crit.Exit(st)
		return err
	}
	if m.protocol == Inherit {
		m.boost(t.prio)
	}
	t.wait.obj = &m.Object
	// Ownership is handed over by Unlock before the wake.
	return k.block(st, &m.waiters, m, timeout)
}

// TryLock acquires the mutex only if that needs no wait.
func (m *Mutex) TryLock() error { return m.Lock(NoWait) }

// Unlock releases one level of ownership. Only the owner may unlock.
func (m *Mutex) Unlock() error {
	if m == nil {
		return kerr.InvalidParam
	}
	k := m.k
	st := k.crit.Enter()
	if m.deleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if m.owner == nil || m.owner != k.current {
		k.crit.Exit(st)
		return kerr.Error
	}
	m.stats.Unlocks++
	m.count--
	if m.count > 0 {
		k.crit.Exit(st)
		return nil
	}
	m.release()
	k.schedule(st)
	return nil
}

// acquire makes t the owner. Called with the critical section held.
func (m *Mutex) acquire(t *Task) {
	m.owner = t
	m.count = 1
	m.stats.Locks++
	t.held = append(t.held, m)
	m.k.recomputePriority(t)
}

// release drops ownership, restores the old owner's priority and passes
// the mutex to the oldest waiter.
func (m *Mutex) release() {
	t := m.owner
	for i, h := range t.held {
		if h == m {
			t.held = append(t.held[:i], t.held[i+1:]...)
			break
		}
	}
	m.owner = nil
	m.count = 0
	m.k.recomputePriority(t)

	if w := m.k.wakeFirst(&m.waiters, nil); w != nil {
		m.acquire(w)
	}
}

// abandon force-releases a mutex whose owner is being deleted.
func (m *Mutex) abandon() {
	if m.owner == nil {
		return
	}
	m.k.logf("kernel: mutex %q abandoned by %q", m.name, m.owner.name)
	m.release()
}

// boost raises the owner chain to at least p.
func (m *Mutex) boost(p Priority) {
	for depth := 0; m != nil && depth < maxInheritDepth; depth++ {
		o := m.owner
		if o == nil || o.prio <= p {
			return
		}
		m.k.setEffectivePriority(o, p)
		m.stats.Boosts++
		next, ok := o.wait.owner.(*Mutex)
		if !ok || o.state != StateBlocked || next.protocol != Inherit {
			return
		}
		m = next
	}
}

// waitAborted drops the boost a timed-out or deleted waiter contributed.
func (m *Mutex) waitAborted(*Task) {
	m.stats.Timeouts++
	m.relax()
}

// relax recomputes the owner chain after a waiter left, undoing boosts that
// propagated through owners blocked on further Inherit mutexes.
func (m *Mutex) relax() {
	for depth := 0; m != nil && depth < maxInheritDepth; depth++ {
		o := m.owner
		if o == nil {
			return
		}
		m.k.recomputePriority(o)
		next, ok := o.wait.owner.(*Mutex)
		if !ok || o.state != StateBlocked || next.protocol != Inherit {
			return
		}
		m = next
	}
}

// Owner returns the owning task, or nil.
func (m *Mutex) Owner() *Task {
	st := m.k.crit.Enter()
	defer m.k.crit.Exit(st)
	return m.owner
}

// IsOwner reports whether the calling task owns the mutex.
func (m *Mutex) IsOwner() bool {
	st := m.k.crit.Enter()
	defer m.k.crit.Exit(st)
	return m.owner != nil && m.owner == m.k.current
}

// LockCount returns the recursion depth.
func (m *Mutex) LockCount() uint32 {
	st := m.k.crit.Enter()
	defer m.k.crit.Exit(st)
	return m.count
}

// SetCeiling changes the ceiling of a Ceiling mutex and returns the old one.
func (m *Mutex) SetCeiling(p Priority) (Priority, error) {
	if m == nil || int(p) >= MaxPriority {
		return 0, kerr.InvalidParam
	}
	var old Priority
	err := m.k.withObject(&m.Object, func() error {
		if m.protocol != Ceiling {
			return kerr.InvalidParam
		}
		old = m.ceiling
		m.ceiling = p
		if m.owner != nil {
			m.k.recomputePriority(m.owner)
		}
		return nil
	})
	return old, err
}

// Reset unlocks the mutex. It fails with Busy while tasks wait.
func (m *Mutex) Reset() error {
	if m == nil {
		return kerr.InvalidParam
	}
	return m.k.withObject(&m.Object, func() error {
		if !m.waiters.empty() {
			return kerr.Busy
		}
		if m.owner != nil {
			m.release()
		}
		return nil
	})
}

// Delete removes the mutex. It fails with Busy while it is held or waited
// on.
func (m *Mutex) Delete() error {
	if m == nil {
		return kerr.InvalidParam
	}
	return m.k.withObject(&m.Object, func() error {
		if m.owner != nil || !m.waiters.empty() {
			return kerr.Busy
		}
		_ = m.k.mutexes.remove(m)
		m.k.dropObject(&m.Object)
		return nil
	})
}

// Stats returns a snapshot of the counters.
func (m *Mutex) Stats() MutexStats {
	st := m.k.crit.Enter()
	defer m.k.crit.Exit(st)
	out := m.stats
	out.Waiters = m.waiters.len()
	out.LockCount = m.count
	if m.owner != nil {
		out.Owner = m.owner.name
	}
	return out
}
