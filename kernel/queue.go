package kernel

import "kestrel/kernel/kerr"

// Queue is a bounded FIFO of fixed-size items copied by value.
type Queue struct {
	Object

	k        *Kernel
	itemSize int
	capacity int
	buf      []byte
	head     int
	count    int

	senders   waitQueue
	receivers waitQueue
	stats     QueueStats
}

// QueueStats are queue counters.
type QueueStats struct {
	Len       int
	Cap       int
	Sent      uint64
	Received  uint64
	Overflows uint64
	Timeouts  uint64
	Peak      int
	Senders   int
	Receivers int
}

// NewQueue creates a queue of capacity items of itemSize bytes.
func (k *Kernel) NewQueue(name string, itemSize, capacity int) (*Queue, error) {
	if itemSize <= 0 || capacity <= 0 {
		return nil, kerr.InvalidParam
	}
	q := &Queue{
		k:        k,
		itemSize: itemSize,
		capacity: capacity,
		buf:      make([]byte, itemSize*capacity),
	}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if err := k.queues.add(q); err != nil {
		return nil, err
	}
	k.initObject(&q.Object, TypeQueue, name, ObjDynamic)
	return q, nil
}

// Send appends item, waiting up to timeout for space. Items shorter than
// the item size are zero padded.
func (q *Queue) Send(item []byte, timeout uint64) error {
	if q == nil {
		return kerr.InvalidParam
	}
	k := q.k
	st := k.crit.Enter()
	if err := q.sendCheck(item); err != nil {
		k.crit.Exit(st)
		return err
	}
	if q.trySend(item) {
		k.schedule(st)
		return nil
	}
	if err := k.checkBlock(timeout); err != nil {
		q.fullErr(err)
		k.crit.Exit(st)
		return err
	}
	t := k.current
	t.wait.obj = &q.Object
	t.wait.data = item
	return k.block(st, &q.senders, q, timeout)
}

// TrySend appends item only if there is space.
func (q *Queue) TrySend(item []byte) error { return q.Send(item, NoWait) }

// SendFromISR is the non-blocking Send for interrupt handlers and
// goroutines outside the kernel.
func (q *Queue) SendFromISR(item []byte) error {
	if q == nil {
		return kerr.InvalidParam
	}
	k := q.k
	st := k.crit.Enter()
	if err := q.sendCheck(item); err != nil {
		k.crit.Exit(st)
		return err
	}
	if !q.trySend(item) {
		q.fullErr(kerr.Timeout)
		k.crit.Exit(st)
		return kerr.Timeout
	}
	k.isrExit(st)
	return nil
}

// Receive copies the oldest item into buf, waiting up to timeout for one,
// and returns the item size.
func (q *Queue) Receive(buf []byte, timeout uint64) (int, error) {
	if q == nil {
		return 0, kerr.InvalidParam
	}
	k := q.k
	st := k.crit.Enter()
	if q.deleted {
		k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	if len(buf) < q.itemSize {
		k.crit.Exit(st)
		return 0, kerr.InvalidParam
	}
	if q.count > 0 {
		q.pop(buf)
		q.refill()
		k.schedule(st)
		return q.itemSize, nil
	}
	if err := k.checkBlock(timeout); err != nil {
		if err == kerr.Timeout {
			q.stats.Timeouts++
		}
		k.crit.Exit(st)
		return 0, err
	}
	t := k.current
	t.wait.obj = &q.Object
	t.wait.data = buf
	t.wait.n = 0
	if err := k.block(st, &q.receivers, q, timeout); err != nil {
		return 0, err
	}
	return t.wait.n, nil
}

// TryReceive takes an item only if one is queued.
func (q *Queue) TryReceive(buf []byte) (int, error) { return q.Receive(buf, NoWait) }

func (q *Queue) sendCheck(item []byte) error {
	if q.deleted {
		return kerr.Deleted
	}
	if len(item) > q.itemSize {
		return kerr.InvalidParam
	}
	return nil
}

func (q *Queue) fullErr(err error) {
	if err == kerr.Timeout {
		q.stats.Overflows++
	}
}

// trySend delivers item to a waiting receiver or the ring. It reports false
// when the queue is full.
func (q *Queue) trySend(item []byte) bool {
	if r := q.receivers.first(); r != nil {
		n := copy(r.wait.data, item)
		clear(r.wait.data[n:q.itemSize])
		r.wait.n = q.itemSize
		q.stats.Sent++
		q.stats.Received++
		q.k.wake(r, nil)
		return true
	}
	if q.count == q.capacity {
		return false
	}
	q.push(item)
	return true
}

// refill moves the oldest blocked sender's item into the slot a receive
// just freed.
func (q *Queue) refill() {
	s := q.senders.first()
	if s == nil || q.count == q.capacity {
		return
	}
	q.push(s.wait.data)
	q.k.wake(s, nil)
}

func (q *Queue) push(item []byte) {
	slot := (q.head + q.count) % q.capacity
	dst := q.buf[slot*q.itemSize : (slot+1)*q.itemSize]
	n := copy(dst, item)
	clear(dst[n:])
	q.count++
	q.stats.Sent++
	if q.count > q.stats.Peak {
		q.stats.Peak = q.count
	}
}

func (q *Queue) pop(buf []byte) {
	src := q.buf[q.head*q.itemSize : (q.head+1)*q.itemSize]
	copy(buf, src)
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.stats.Received++
}

func (q *Queue) waitAborted(*Task) { q.stats.Timeouts++ }

// Len returns the number of queued items.
func (q *Queue) Len() int {
	st := q.k.crit.Enter()
	defer q.k.crit.Exit(st)
	return q.count
}

// Cap returns the capacity in items.
func (q *Queue) Cap() int { return q.capacity }

// ItemSize returns the item size in bytes.
func (q *Queue) ItemSize() int { return q.itemSize }

// Space returns the free slots.
func (q *Queue) Space() int {
	st := q.k.crit.Enter()
	defer q.k.crit.Exit(st)
	return q.capacity - q.count
}

func (q *Queue) IsEmpty() bool { return q.Len() == 0 }
func (q *Queue) IsFull() bool  { return q.Space() == 0 }

// Reset discards every queued item. It fails with Busy while tasks wait.
func (q *Queue) Reset() error {
	if q == nil {
		return kerr.InvalidParam
	}
	return q.k.withObject(&q.Object, func() error {
		if !q.senders.empty() || !q.receivers.empty() {
			return kerr.Busy
		}
		q.head, q.count = 0, 0
		clear(q.buf)
		return nil
	})
}

// Delete removes the queue. It fails with Busy while tasks wait.
func (q *Queue) Delete() error {
	if q == nil {
		return kerr.InvalidParam
	}
	return q.k.withObject(&q.Object, func() error {
		if !q.senders.empty() || !q.receivers.empty() {
			return kerr.Busy
		}
		_ = q.k.queues.remove(q)
		q.k.dropObject(&q.Object)
		return nil
	})
}

// Stats returns a snapshot of the counters.
func (q *Queue) Stats() QueueStats {
	st := q.k.crit.Enter()
	defer q.k.crit.Exit(st)
	out := q.stats
	out.Len = q.count
	out.Cap = q.capacity
	out.Senders = q.senders.len()
	out.Receivers = q.receivers.len()
	return out
}
