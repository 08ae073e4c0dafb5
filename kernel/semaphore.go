package kernel

import "kestrel/kernel/kerr"

// Semaphore is a counting semaphore with a FIFO wait queue.
type Semaphore struct {
	Object

	k       *Kernel
	count   uint32
	max     uint32
	waiters waitQueue
	stats   SemaphoreStats
}

// SemaphoreStats are semaphore counters.
type SemaphoreStats struct {
	Count    uint32
	Max      uint32
	Takes    uint64
	Gives    uint64
	Timeouts uint64
	Waiters  int
}

// NewSemaphore creates a semaphore holding initial of at most max tokens.
func (k *Kernel) NewSemaphore(name string, initial, max uint32) (*Semaphore, error) {
	if max == 0 || initial > max {
		return nil, kerr.InvalidParam
	}
	s := &Semaphore{k: k, count: initial, max: max}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.sems.add(s); err != nil {
		return nil, err
	}
	k.initObject(&s.Object, TypeSemaphore, name, ObjDynamic)
	return s, nil
}

// Take acquires a token, waiting up to timeout for one.
func (s *Semaphore) Take(timeout uint64) error {
	if s == nil {
		return kerr.InvalidParam
	}
	k := s.k
	st := k.crit.Enter()
	if s.deleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if s.count > 0 {
		s.count--
		s.stats.Takes++
		k.schedule(st)
		return nil
	}
	if err := k.checkBlock(timeout); err != nil {
		if err == kerr.Timeout {
			s.stats.Timeouts++
		}
		k.crit.Exit(st)
		return err
	}
	k.current.wait.obj = &s.Object
	return k.block(st, &s.waiters, s, timeout)
}

// TryTake acquires a token only if one is available.
func (s *Semaphore) TryTake() error { return s.Take(NoWait) }

// Give releases a token, handing it straight to the oldest waiter if there
// is one.
func (s *Semaphore) Give() error {
	if s == nil {
		return kerr.InvalidParam
	}
	st := s.k.crit.Enter()
	if err := s.give(); err != nil {
		s.k.crit.Exit(st)
		return err
	}
	s.k.schedule(st)
	return nil
}

// GiveFromISR is Give for interrupt handlers and goroutines outside the
// kernel.
func (s *Semaphore) GiveFromISR() error {
	if s == nil {
		return kerr.InvalidParam
	}
	st := s.k.crit.Enter()
	if err := s.give(); err != nil {
		s.k.crit.Exit(st)
		return err
	}
	s.k.isrExit(st)
	return nil
}

func (s *Semaphore) give() error {
	if s.deleted {
		return kerr.Deleted
	}
	if t := s.k.wakeFirst(&s.waiters, nil); t != nil {
		s.stats.Gives++
		s.stats.Takes++
		return nil
	}
	if s.count >= s.max {
		return kerr.Busy
	}
	s.count++
	s.stats.Gives++
	return nil
}

func (s *Semaphore) waitAborted(*Task) { s.stats.Timeouts++ }

// Count returns the available tokens.
func (s *Semaphore) Count() uint32 {
	st := s.k.crit.Enter()
	defer s.k.crit.Exit(st)
	return s.count
}

// Reset sets the token count. It fails with Busy while tasks wait.
func (s *Semaphore) Reset(count uint32) error {
	return s.locked(func() error {
		if count > s.max {
			return kerr.InvalidParam
		}
		if !s.waiters.empty() {
			return kerr.Busy
		}
		s.count = count
		return nil
	})
}

// Delete removes the semaphore. It fails with Busy while tasks wait.
func (s *Semaphore) Delete() error {
	return s.locked(func() error {
		if !s.waiters.empty() {
			return kerr.Busy
		}
		_ = s.k.sems.remove(s)
		s.k.dropObject(&s.Object)
		return nil
	})
}

// Stats returns a snapshot of the counters.
func (s *Semaphore) Stats() SemaphoreStats {
	st := s.k.crit.Enter()
	defer s.k.crit.Exit(st)
	out := s.stats
	out.Count = s.count
	out.Max = s.max
	out.Waiters = s.waiters.len()
	return out
}

// locked runs fn under the critical section for a live semaphore.
func (s *Semaphore) locked(fn func() error) error {
	if s == nil {
		return kerr.InvalidParam
	}
	return s.k.withObject(&s.Object, fn)
}
