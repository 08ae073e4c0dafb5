package kernel

import (
	"kestrel/hal"
	"kestrel/kernel/kerr"
	"kestrel/kernel/tickless"
)

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	StateInit TaskState = iota
	StateReady
	StateRunning
	StateBlocked
	StateSuspended
	StateDeleted
)

func (s TaskState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateSuspended:
		return "suspended"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// TaskFlags select optional per-task behavior.
type TaskFlags uint8

const (
	// FlagStackCheck verifies the stack canaries every time the task is
	// switched out.
	FlagStackCheck TaskFlags = 1 << iota
	// FlagTimeslice rotates the task with its equal-priority peers.
	FlagTimeslice
)

// TaskParams describe a task to create.
type TaskParams struct {
	Name  string
	Entry func(arg any)
	Arg   any

	// StackSize is in bytes. Zero selects StackDefault. Ignored when Stack
	// is set.
	StackSize int
	// Stack is caller-owned stack storage.
	Stack []uint32

	Priority Priority
	// Timeslice overrides Config.Timeslice for FlagTimeslice tasks.
	Timeslice uint64
	Flags     TaskFlags
}

// Task is a kernel thread of execution.
type Task struct {
	Object

	k  *Kernel
	id hal.ContextID

	entry func(any)
	arg   any

	stack []uint32
	sp    int

	prio      Priority
	base      Priority
	timeslice uint64

	state       TaskState
	resumeState TaskState
	flags       TaskFlags
	suspends    uint32

	inReady   bool
	inBlocked bool

	wait  waitNode
	event tickless.Event
	held  []*Mutex

	switches uint32
	runtime  uint64
	lastRun  uint64
	overflow bool

	cleanup func(*Task)
}

// TaskInfo is a snapshot of a task.
type TaskInfo struct {
	Name         string
	State        TaskState
	Priority     Priority
	BasePriority Priority
	Flags        TaskFlags
	StackSize    int
	StackUsed    int
	StackFree    int
	Switches     uint32
	Runtime      uint64
	Overflow     bool
	Suspends     uint32
}

// CreateTask validates p and registers a task in StateInit.
func (k *Kernel) CreateTask(p TaskParams) (*Task, error) {
	if p.Entry == nil || int(p.Priority) >= MaxPriority {
		return nil, kerr.InvalidParam
	}

	flags := ObjDynamic
	stack := p.Stack
	if stack != nil {
		if len(stack)*4 < StackMin || len(stack)*4 > StackMax {
			return nil, kerr.InvalidParam
		}
		flags = ObjStatic
	} else {
		size := p.StackSize
		if size == 0 {
			size = StackDefault
		}
		if size < StackMin || size > StackMax {
			return nil, kerr.InvalidParam
		}
		stack = make([]uint32, size/4)
	}
	initStack(stack)

	slice := p.Timeslice
	if slice == 0 {
		slice = k.cfg.Timeslice
	}
	t := &Task{
		k:         k,
		entry:     p.Entry,
		arg:       p.Arg,
		stack:     stack,
		sp:        len(stack) - 1,
		prio:      p.Priority,
		base:      p.Priority,
		timeslice: slice,
		flags:     p.Flags,
	}
	t.event = tickless.Event{Target: t, Fire: k.taskEventExpired}

	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if k.state == SysShutdown {
		return nil, kerr.Error
	}
	if err := k.tasks.add(t); err != nil {
		return nil, err
	}
	k.nextCtx++
	if k.nextCtx == hal.NoContext {
		k.nextCtx++
	}
	t.id = k.nextCtx
	k.initObject(&t.Object, TypeTask, p.Name, flags)
	return t, nil
}

// SpawnTask creates and starts a task.
func (k *Kernel) SpawnTask(p TaskParams) (*Task, error) {
	t, err := k.CreateTask(p)
	if err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		_ = t.Delete()
		return nil, err
	}
	return t, nil
}

// Start prepares the task's context and makes it ready.
func (t *Task) Start() error {
	if t == nil {
		return kerr.InvalidParam
	}
	k := t.k

	st := k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if t.state != StateInit {
		k.crit.Exit(st)
		return kerr.Busy
	}
	sp, err := k.sw.Prepare(t.id, t.stack, func() { k.taskMain(t) })
	if err != nil {
		k.crit.Exit(st)
		return err
	}
	t.sp = sp
	t.state = StateReady
	k.readyInsert(t)
	k.schedule(st)
	return nil
}

// Suspend stops t from running until a matching Resume. Suspends nest.
func (t *Task) Suspend() error {
	if t == nil {
		return kerr.InvalidParam
	}
	k := t.k
	st := k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	t.suspends++
	if t.suspends == 1 {
		prev := t.state
		if prev == StateRunning {
			prev = StateReady
		}
		t.resumeState = prev
		k.readyRemove(t)
		t.state = StateSuspended
	}
	k.schedule(st)
	return nil
}

// Resume undoes one Suspend. A task that is not suspended is left alone.
func (t *Task) Resume() error {
	if t == nil {
		return kerr.InvalidParam
	}
	k := t.k
	st := k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if t.state != StateSuspended {
		k.crit.Exit(st)
		return nil
	}
	t.suspends--
	if t.suspends == 0 {
		t.state = t.resumeState
		if t.state == StateReady {
			k.readyInsert(t)
		}
	}
	k.schedule(st)
	return nil
}

// Delete removes t from the kernel. The running task cannot be deleted; it
// finishes by returning from its entry function.
func (t *Task) Delete() error {
	if t == nil {
		return kerr.InvalidParam
	}
	k := t.k
	st := k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return kerr.Deleted
	}
	if t == k.current {
		k.crit.Exit(st)
		return kerr.Busy
	}
	k.retire(t)
	k.sw.Release(t.id)
	cleanup := t.cleanup
	k.schedule(st)

	if cleanup != nil {
		cleanup(t)
	}
	return nil
}

// retire unlinks t from every kernel structure. Called with the critical
// section held.
func (k *Kernel) retire(t *Task) {
	k.readyRemove(t)
	k.blockedRemove(t)
	if q := t.wait.queue; q != nil {
		q.remove(t)
		if owner := t.wait.owner; owner != nil {
			owner.waitAborted(t)
		}
	}
	if t.event.Queued() {
		_ = k.events.Remove(&t.event)
	}
	for len(t.held) > 0 {
		t.held[0].abandon()
	}
	_ = k.tasks.remove(t)
	k.dropObject(&t.Object)
	t.state = StateDeleted
	t.wait.reset()
}

// SetPriority changes the base priority and returns the previous one. A
// priority raised by a held mutex stays raised until the mutex is released.
func (t *Task) SetPriority(p Priority) (Priority, error) {
	if t == nil || int(p) >= MaxPriority {
		return 0, kerr.InvalidParam
	}
	k := t.k
	st := k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return 0, kerr.Deleted
	}
	old := t.base
	t.base = p
	k.recomputePriority(t)
	k.schedule(st)
	return old, nil
}

// Priority returns the effective priority.
func (t *Task) Priority() Priority {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	return t.prio
}

// BasePriority returns the priority without mutex boosts.
func (t *Task) BasePriority() Priority {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	return t.base
}

// State returns the current scheduling state.
func (t *Task) State() TaskState {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	return t.state
}

// SetCleanup installs fn to run after the task is deleted or exits.
func (t *Task) SetCleanup(fn func(*Task)) {
	st := t.k.crit.Enter()
	t.cleanup = fn
	t.k.crit.Exit(st)
}

// Info returns a snapshot of t.
func (t *Task) Info() TaskInfo {
	st := t.k.crit.Enter()
	defer t.k.crit.Exit(st)
	used := t.stackUsed()
	return TaskInfo{
		Name:         t.name,
		State:        t.state,
		Priority:     t.prio,
		BasePriority: t.base,
		Flags:        t.flags,
		StackSize:    len(t.stack) * 4,
		StackUsed:    used,
		StackFree:    len(t.stack)*4 - used,
		Switches:     t.switches,
		Runtime:      t.runtime,
		Overflow:     t.overflow,
		Suspends:     t.suspends,
	}
}

// Current returns the running task, or nil when idle or called before Start.
func (k *Kernel) Current() *Task {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.current
}

// FindTask looks a task up by name.
func (k *Kernel) FindTask(name string) (*Task, bool) {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.tasks.find(name)
}

// Tasks returns the registered tasks.
func (k *Kernel) Tasks() []*Task {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.tasks.snapshot()
}

// Delay blocks the calling task for d nanoseconds. Zero returns at once.
func (k *Kernel) Delay(d uint64) error {
	if d == 0 {
		return nil
	}
	st := k.crit.Enter()
	if err := k.checkBlock(d); err != nil {
		k.crit.Exit(st)
		return err
	}
	return k.block(st, nil, nil, d)
}

// DelayMS blocks the calling task for ms milliseconds.
func (k *Kernel) DelayMS(ms uint32) error { return k.Delay(uint64(ms) * 1_000_000) }

// DelayUS blocks the calling task for us microseconds.
func (k *Kernel) DelayUS(us uint32) error { return k.Delay(uint64(us) * 1_000) }

// DelayUntil blocks the calling task until the clock reaches at.
func (k *Kernel) DelayUntil(at uint64) error {
	now := k.clock.Now()
	if at <= now {
		return nil
	}
	return k.Delay(at - now)
}

// Yield lets equal-priority tasks run before the caller continues.
func (k *Kernel) Yield() error {
	st := k.crit.Enter()
	t := k.current
	if t == nil {
		k.crit.Exit(st)
		return kerr.InvalidParam
	}
	k.readyRemove(t)
	k.readyInsert(t)
	k.schedule(st)
	return nil
}

// taskMain runs on the task's own context.
func (k *Kernel) taskMain(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			k.reportPanic(t, r)
		}
		k.exit(t)
	}()
	t.entry(t.arg)
}

// exit retires the current task after its entry function returned and hands
// the CPU to the next ready task. The cleanup runs first, while the task is
// still current.
func (k *Kernel) exit(t *Task) {
	st := k.crit.Enter()
	if t.state == StateDeleted || k.current != t {
		k.crit.Exit(st)
		return
	}
	cleanup := t.cleanup
	k.crit.Exit(st)

	k.logf("kernel: task %q exited", t.name)
	if cleanup != nil {
		cleanup(t)
	}

	st = k.crit.Enter()
	if t.state == StateDeleted {
		k.crit.Exit(st)
		return
	}
	if k.lockLevel > 0 {
		k.logf("kernel: task %q exited with scheduler locked", t.name)
		k.lockLevel = 0
	}
	k.retire(t)
	to := k.pick()
	k.switchTo(t, to)
	hook, idle := k.switchHook, k.idleHook
	k.crit.Exit(st)

	runHooks(hook, idle, t, to)
	k.sw.Release(t.id)
	if to != nil {
		k.sw.Switch(hal.NoContext, to.id)
	}
}

// taskEventExpired resolves delay and wait timeouts. Called from TimerISR
// with the critical section held.
func (k *Kernel) taskEventExpired(e *tickless.Event) {
	t := e.Target.(*Task)
	if t.state != StateBlocked && !(t.state == StateSuspended && t.resumeState == StateBlocked) {
		return
	}
	if e.Kind == tickless.KindTaskDelay {
		k.wake(t, nil)
		return
	}
	owner := t.wait.owner
	k.wake(t, kerr.Timeout)
	if owner != nil {
		owner.waitAborted(t)
	}
}
