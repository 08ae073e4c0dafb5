package kernel

import "fmt"

// FaultKind classifies a detected fault.
type FaultKind uint8

const (
	FaultStackOverflow FaultKind = iota + 1
	FaultMemCorrupt
	FaultPanic
)

func (f FaultKind) String() string {
	switch f {
	case FaultStackOverflow:
		return "stack_overflow"
	case FaultMemCorrupt:
		return "mem_corrupt"
	case FaultPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Fault is passed to the fault handler.
type Fault struct {
	Kind  FaultKind
	Task  *Task
	Pool  *Pool
	Value any
}

func (f Fault) String() string {
	name := "-"
	switch {
	case f.Task != nil:
		name = f.Task.name
	case f.Pool != nil:
		name = f.Pool.name
	}
	if f.Value != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, name, f.Value)
	}
	return fmt.Sprintf("%s: %s", f.Kind, name)
}

// SetFaultHandler installs fn to be told about stack overflows, pool
// corruption and task panics. fn may run with the kernel lock held and must
// not call the kernel.
func (k *Kernel) SetFaultHandler(fn func(Fault)) {
	st := k.crit.Enter()
	k.faultHandler = fn
	k.crit.Exit(st)
}

// raise delivers f to the fault handler. Called with the critical section
// held.
func (k *Kernel) raise(f Fault) {
	if fn := k.faultHandler; fn != nil {
		fn(f)
	}
}
