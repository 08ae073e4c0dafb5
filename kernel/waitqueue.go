package kernel

import (
	"github.com/gammazero/deque"

	"kestrel/kernel/kerr"
)

// WaitOpts modify an event-group wait.
type WaitOpts uint8

const (
	// WaitAll waits for every requested bit instead of any of them.
	WaitAll WaitOpts = 1 << iota
	// ClearOnExit clears the bits that satisfied the wait.
	ClearOnExit
)

// waiter is implemented by primitives that must fix up their own state when
// one of their waiters times out or is deleted.
type waiter interface {
	waitAborted(t *Task)
}

// waitNode is the per-task wait record. A task waits on at most one object,
// so the node lives in the Task and nothing is allocated per wait.
type waitNode struct {
	queue  *waitQueue
	owner  waiter
	obj    *Object
	mask   uint32
	opts   WaitOpts
	value  uint32
	data   []byte
	n      int
	result error
}

func (n *waitNode) reset() {
	*n = waitNode{}
}

// waitQueue is a FIFO of blocked tasks.
type waitQueue struct {
	tasks deque.Deque[*Task]
}

func (q *waitQueue) push(t *Task) {
	q.tasks.PushBack(t)
	t.wait.queue = q
}

func (q *waitQueue) remove(t *Task) bool {
	i := q.tasks.Index(func(x *Task) bool { return x == t })
	if i < 0 {
		return false
	}
	q.tasks.Remove(i)
	if t.wait.queue == q {
		t.wait.queue = nil
	}
	return true
}

func (q *waitQueue) first() *Task {
	if q.tasks.Len() == 0 {
		return nil
	}
	return q.tasks.Front()
}

func (q *waitQueue) at(i int) *Task { return q.tasks.At(i) }
func (q *waitQueue) empty() bool    { return q.tasks.Len() == 0 }
func (q *waitQueue) len() int       { return q.tasks.Len() }

// wakeFirst wakes the head waiter with result and returns it, or nil.
func (k *Kernel) wakeFirst(q *waitQueue, result error) *Task {
	t := q.first()
	if t != nil {
		k.wake(t, result)
	}
	return t
}

// wakeAll wakes every waiter with result and returns how many there were.
func (k *Kernel) wakeAll(q *waitQueue, result error) int {
	n := 0
	for !q.empty() {
		k.wake(q.first(), result)
		n++
	}
	return n
}

// checkBlock reports whether the current context may block for timeout.
// Called with the critical section held.
func (k *Kernel) checkBlock(timeout uint64) error {
	if timeout == NoWait {
		return kerr.Timeout
	}
	if k.current == nil || k.state != SysRunning {
		return kerr.InvalidParam
	}
	return nil
}
