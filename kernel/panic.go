package kernel

import (
	"sync"
	"sync/atomic"
)

// PanicInfo describes a panic recovered from a task.
type PanicInfo struct {
	Task  string
	Value any
	Stack []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a task has panicked.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once (on the first panic). It must not panic
// and must not call the kernel.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// reportPanic records a panic recovered in t's entry function. The task is
// then retired as if it had returned.
func (k *Kernel) reportPanic(t *Task, v any) {
	k.logf("kernel: task %q panicked: %v", t.name, v)
	st := k.crit.Enter()
	fn := k.faultHandler
	k.crit.Exit(st)
	if fn != nil {
		fn(Fault{Kind: FaultPanic, Task: t, Value: v})
	}

	panicOnce.Do(func() {
		panicActive.Store(true)
		info := PanicInfo{Task: t.name, Value: v, Stack: captureStack()}
		if h := panicHandler.Load(); h != nil {
			if fn, ok := h.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
