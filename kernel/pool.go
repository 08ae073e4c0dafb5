package kernel

import (
	"kestrel/kernel/kerr"
	"kestrel/kernel/mempool"
)

// Pool is a kernel-registered fixed-block allocator. Tasks may wait for a
// block to be freed.
type Pool struct {
	Object

	k       *Kernel
	pool    *mempool.Pool
	waiters waitQueue
	waits   uint64
}

// NewPool creates a pool of count blocks of blockSize bytes, carved from buf
// or from a fresh allocation when buf is nil.
func (k *Kernel) NewPool(name string, blockSize, count int, buf []byte) (*Pool, error) {
	mp, err := mempool.New(blockSize, count, buf)
	if err != nil {
		return nil, err
	}
	flags := ObjDynamic
	if buf != nil {
		flags = ObjStatic
	}
	p := &Pool{k: k, pool: mp}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.pools.add(p); err != nil {
		return nil, err
	}
	k.initObject(&p.Object, TypeMemoryPool, name, flags)
	return p, nil
}

// Alloc returns a zeroed block, waiting up to timeout for one to be freed.
// An exhausted pool with NoWait returns NoMemory.
func (p *Pool) Alloc(timeout uint64) ([]byte, error) {
	if p == nil {
		return nil, kerr.InvalidParam
	}
	k := p.k
	var deadline uint64
	if timeout != Forever {
		now := k.clock.Now()
		deadline = now + timeout
		if deadline < now {
			deadline = Forever - 1
		}
	}
	for {
		st := k.crit.Enter()
		if p.deleted {
			k.crit.Exit(st)
			return nil, kerr.Deleted
		}
		if b := p.pool.TryAlloc(); b != nil {
			k.schedule(st)
			return b, nil
		}
		if timeout == NoWait {
			k.crit.Exit(st)
			return nil, kerr.NoMemory
		}
		wait := Forever
		if timeout != Forever {
			now := k.clock.Now()
			if now >= deadline {
				k.crit.Exit(st)
				return nil, kerr.Timeout
			}
			wait = deadline - now
		}
		if err := k.checkBlock(wait); err != nil {
			k.crit.Exit(st)
			return nil, err
		}
		p.waits++
		k.current.wait.obj = &p.Object
		if err := k.block(st, &p.waiters, p, wait); err != nil {
			return nil, err
		}
	}
}

// TryAlloc returns a block or nil without waiting.
func (p *Pool) TryAlloc() []byte {
	b, _ := p.Alloc(NoWait)
	return b
}

// Free returns b to the pool and wakes the oldest waiting allocator.
func (p *Pool) Free(b []byte) error {
	if p == nil {
		return kerr.InvalidParam
	}
	k := p.k
	st := k.crit.Enter()
	if p.deleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if err := p.pool.Free(b); err != nil {
		k.crit.Exit(st)
		return err
	}
	k.wakeFirst(&p.waiters, nil)
	k.schedule(st)
	return nil
}

func (p *Pool) waitAborted(*Task) {}

// Contains reports whether b lies inside the pool.
func (p *Pool) Contains(b []byte) bool {
	st := p.k.crit.Enter()
	defer p.k.crit.Exit(st)
	return p.pool.Contains(b)
}

// CheckIntegrity validates the free list and reports corruption to the
// fault handler.
func (p *Pool) CheckIntegrity() error {
	if p == nil {
		return kerr.InvalidParam
	}
	return p.k.withObject(&p.Object, func() error {
		err := p.pool.CheckIntegrity()
		if err != nil {
			p.k.raise(Fault{Kind: FaultMemCorrupt, Pool: p, Value: err})
		}
		return err
	})
}

// Reset returns every block to the pool. It fails with Busy while tasks
// wait.
func (p *Pool) Reset() error {
	if p == nil {
		return kerr.InvalidParam
	}
	return p.k.withObject(&p.Object, func() error {
		if !p.waiters.empty() {
			return kerr.Busy
		}
		p.pool.Reset()
		return nil
	})
}

// Delete removes the pool. It fails with Busy while tasks wait.
func (p *Pool) Delete() error {
	if p == nil {
		return kerr.InvalidParam
	}
	return p.k.withObject(&p.Object, func() error {
		if !p.waiters.empty() {
			return kerr.Busy
		}
		_ = p.k.pools.remove(p)
		p.k.dropObject(&p.Object)
		return nil
	})
}

// PoolStats extends the allocator statistics with kernel wait counts.
type PoolStats struct {
	mempool.Stats
	Waits   uint64
	Waiters int
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() PoolStats {
	st := p.k.crit.Enter()
	defer p.k.crit.Exit(st)
	return PoolStats{Stats: p.pool.Stats(), Waits: p.waits, Waiters: p.waiters.len()}
}
