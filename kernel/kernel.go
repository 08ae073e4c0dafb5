// Package kernel is a preemptive, priority-based real-time kernel with a
// tick-less time base. All state lives in a Kernel value; the platform is
// injected through hal interfaces.
package kernel

import (
	"fmt"

	"github.com/gammazero/deque"

	"kestrel/hal"
	"kestrel/kernel/kerr"
	"kestrel/kernel/tickless"
)

// SysState is the kernel lifecycle state.
type SysState uint8

const (
	SysInit SysState = iota
	SysReady
	SysRunning
	SysShutdown
)

func (s SysState) String() string {
	switch s {
	case SysInit:
		return "init"
	case SysReady:
		return "ready"
	case SysRunning:
		return "running"
	case SysShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Stats are system-wide counters.
type Stats struct {
	State           SysState
	Uptime          uint64
	Switches        uint64
	IdleEntries     uint64
	Interrupts      uint64
	PendingSwitches uint64
	SliceRotations  uint64

	Tasks   int
	Ready   int
	Blocked int
	Events  int
}

// Kernel owns every kernel object and the scheduler state.
type Kernel struct {
	cfg Config

	clock hal.Clock
	timer hal.Timer
	crit  hal.Critical
	sw    hal.ContextSwitcher
	log   hal.Logger

	state     SysState
	started   uint64
	current   *Task
	ready     deque.Deque[*Task]
	blocked   deque.Deque[*Task]
	lockLevel uint32
	nextCtx   hal.ContextID

	events *tickless.List
	slice  tickless.Event

	objects deque.Deque[*Object]
	tasks   registry[*Task]
	sems    registry[*Semaphore]
	mutexes registry[*Mutex]
	queues  registry[*Queue]
	groups  registry[*EventGroup]
	timers  registry[*Timer]
	pools   registry[*Pool]

	timerTask *Task
	timerWait waitQueue
	timerDue  deque.Deque[*Timer]

	switchHook    func(from, to *Task)
	idleHook      func()
	startupHooks  []func()
	shutdownHooks []func()
	faultHandler  func(Fault)

	stats Stats
}

// New builds a kernel on hw. Zero Config fields take their defaults.
func New(cfg Config, hw Hardware) (*Kernel, error) {
	if !hw.valid() {
		return nil, kerr.InvalidParam
	}
	cfg = cfg.withDefaults()
	k := &Kernel{
		cfg:     cfg,
		clock:   hw.Clock,
		timer:   hw.Timer,
		crit:    hw.Critical,
		sw:      hw.Switcher,
		log:     cfg.Logger,
		tasks:   newRegistry[*Task](cfg.MaxTasks + 1),
		sems:    newRegistry[*Semaphore](cfg.MaxSemaphores),
		mutexes: newRegistry[*Mutex](cfg.MaxMutexes),
		queues:  newRegistry[*Queue](cfg.MaxQueues),
		groups:  newRegistry[*EventGroup](cfg.MaxEventGroups),
		timers:  newRegistry[*Timer](cfg.MaxTimers),
		pools:   newRegistry[*Pool](cfg.MaxPools),
	}
	k.events = tickless.New(hw.Clock, hw.Timer, cfg.DelayPolicy)
	k.slice = tickless.Event{Kind: tickless.KindTimeout, Fire: k.sliceExpired}
	hw.Timer.SetHandler(k.TimerISR)
	k.state = SysReady
	return k, nil
}

// Start launches the timer service task and dispatches the highest-priority
// ready task. It returns once the first task has been switched in (or the
// CPU went idle); from then on tasks run on their own contexts.
func (k *Kernel) Start() error {
	st := k.crit.Enter()
	if k.state != SysReady {
		k.crit.Exit(st)
		return kerr.Busy
	}
	k.crit.Exit(st)

	t, err := k.CreateTask(TaskParams{
		Name:      "tmr svc",
		Entry:     k.timerService,
		StackSize: k.cfg.TimerTaskStack,
		Priority:  k.cfg.TimerTaskPriority,
	})
	if err != nil {
		return fmt.Errorf("kernel: timer task: %w", err)
	}
	t.Object.flags = ObjSystem | ObjDynamic
	if err := t.Start(); err != nil {
		return fmt.Errorf("kernel: timer task: %w", err)
	}

	st = k.crit.Enter()
	k.timerTask = t
	k.state = SysRunning
	k.started = k.clock.Now()
	hooks := append([]func(){}, k.startupHooks...)
	k.crit.Exit(st)

	for _, fn := range hooks {
		fn()
	}
	k.logf("kernel: kestrel %s started", Version)

	st = k.crit.Enter()
	if k.current == nil && k.pick() == nil {
		idle := k.idleHook
		k.stats.IdleEntries++
		k.crit.Exit(st)
		if idle != nil {
			idle()
		}
		return nil
	}
	k.schedule(st)
	return nil
}

// Shutdown stops the timer, releases every task context and runs the
// shutdown hooks. Call it from outside task context.
func (k *Kernel) Shutdown() error {
	st := k.crit.Enter()
	if k.state == SysShutdown {
		k.crit.Exit(st)
		return kerr.Busy
	}
	k.state = SysShutdown
	tasks := k.tasks.snapshot()
	for _, t := range tasks {
		k.retire(t)
	}
	k.current = nil
	for k.events.Len() > 0 {
		k.events.Expire(^uint64(0), func(*tickless.Event) {})
	}
	k.timer.Stop()
	hooks := append([]func(){}, k.shutdownHooks...)
	k.crit.Exit(st)

	for _, t := range tasks {
		k.sw.Release(t.id)
	}
	for _, fn := range hooks {
		fn()
	}
	k.logf("kernel: shutdown after %dns", k.clock.Now()-k.started)
	return nil
}

// TimerISR is the hardware timer interrupt entry. It resolves every expired
// time event and dispatches an idle CPU.
func (k *Kernel) TimerISR() {
	st := k.crit.Enter()
	k.stats.Interrupts++
	if k.state == SysShutdown {
		k.crit.Exit(st)
		return
	}
	k.events.Expire(k.clock.Now(), nil)
	k.isrExit(st)
}

// State returns the lifecycle state.
func (k *Kernel) State() SysState {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.state
}

// Idle reports whether the kernel is running with no task on the CPU.
func (k *Kernel) Idle() bool {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.state == SysRunning && k.current == nil
}

// Now returns the kernel clock in nanoseconds.
func (k *Kernel) Now() uint64 { return k.clock.Now() }

// Uptime returns the time since Start.
func (k *Kernel) Uptime() uint64 {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if k.state != SysRunning {
		return 0
	}
	return k.clock.Now() - k.started
}

// SetSwitchHook installs fn to run after every task switch. to is nil when
// the CPU goes idle. Hooks run outside the kernel lock and must not call
// blocking kernel operations.
func (k *Kernel) SetSwitchHook(fn func(from, to *Task)) {
	st := k.crit.Enter()
	k.switchHook = fn
	k.crit.Exit(st)
}

// SetIdleHook installs fn to run every time the CPU goes idle.
func (k *Kernel) SetIdleHook(fn func()) {
	st := k.crit.Enter()
	k.idleHook = fn
	k.crit.Exit(st)
}

// OnStartup registers fn to run when Start is called.
func (k *Kernel) OnStartup(fn func()) {
	st := k.crit.Enter()
	k.startupHooks = append(k.startupHooks, fn)
	k.crit.Exit(st)
}

// OnShutdown registers fn to run at the end of Shutdown.
func (k *Kernel) OnShutdown(fn func()) {
	st := k.crit.Enter()
	k.shutdownHooks = append(k.shutdownHooks, fn)
	k.crit.Exit(st)
}

// SetDelayPolicy replaces the tick-less delay policy at run time.
func (k *Kernel) SetDelayPolicy(p tickless.Policy) {
	st := k.crit.Enter()
	k.events.SetPolicy(p)
	k.crit.Exit(st)
}

// Stats returns system counters.
func (k *Kernel) Stats() Stats {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	s := k.stats
	s.State = k.state
	if k.state == SysRunning {
		s.Uptime = k.clock.Now() - k.started
	}
	s.Tasks = k.tasks.len()
	s.Ready = k.ready.Len()
	s.Blocked = k.blocked.Len()
	s.Events = k.events.Len()
	return s
}

// ResetStats zeroes the kernel and tick-less list counters. Uptime and the
// object counts are live values and are not affected.
func (k *Kernel) ResetStats() {
	st := k.crit.Enter()
	k.stats = Stats{}
	k.events.ResetStats()
	k.crit.Exit(st)
}

// TimeStats returns the tick-less list statistics.
func (k *Kernel) TimeStats() tickless.Stats {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.events.Stats()
}

// TimeInfo formats the tick-less list state.
func (k *Kernel) TimeInfo() string {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.events.Info()
}

// NextDeadline returns the earliest pending time event, or 0.
func (k *Kernel) NextDeadline() uint64 {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	return k.events.Next()
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}
