package kernel

import (
	"kestrel/hal"
	"kestrel/kernel/tickless"
)

// Priority is a scheduling priority. Lower numbers run first.
type Priority uint8

const (
	MaxPriority = 32

	PriorityCritical Priority = 0
	PriorityHigh     Priority = 8
	PriorityNormal   Priority = 16
	PriorityLow      Priority = 24
	PriorityIdle     Priority = 31
)

// Stack sizes are in bytes.
const (
	StackMin     = 256
	StackDefault = 1024
	StackMax     = 65536

	// StackMagic guards both ends of every task stack.
	StackMagic uint32 = 0xDEADBEEF
	// stackFill marks words that were never used.
	stackFill uint32 = 0xA5A5A5A5
)

// Timeouts, in nanoseconds.
const (
	NoWait  uint64 = 0
	Forever uint64 = ^uint64(0)
)

// DefaultTimeslice is the round-robin slice for FlagTimeslice tasks, in ns.
const DefaultTimeslice uint64 = 10_000

// Version identifies the kernel release.
const Version = "1.2.0"

// Config sizes the kernel. Zero fields take their DefaultConfig value.
type Config struct {
	MaxTasks       int
	MaxSemaphores  int
	MaxMutexes     int
	MaxQueues      int
	MaxEventGroups int
	MaxTimers      int
	MaxPools       int

	// Timeslice is the default slice for FlagTimeslice tasks.
	Timeslice uint64

	// TimerTaskPriority is the priority of the software timer service task.
	// Zero selects PriorityHigh, so the service task never runs at
	// PriorityCritical.
	TimerTaskPriority Priority
	// TimerTaskStack is its stack size in bytes.
	TimerTaskStack int

	// DelayPolicy limits how far ahead the hardware timer is programmed.
	// Nil programs it for the exact next deadline.
	DelayPolicy tickless.Policy

	// Logger receives kernel lifecycle and fault lines. May be nil.
	Logger hal.Logger
}

// DefaultConfig returns the stock object limits.
func DefaultConfig() Config {
	return Config{
		MaxTasks:          16,
		MaxSemaphores:     8,
		MaxMutexes:        8,
		MaxQueues:         8,
		MaxEventGroups:    8,
		MaxTimers:         16,
		MaxPools:          8,
		Timeslice:         DefaultTimeslice,
		TimerTaskPriority: PriorityHigh,
		TimerTaskStack:    StackDefault,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTasks <= 0 {
		c.MaxTasks = d.MaxTasks
	}
	if c.MaxSemaphores <= 0 {
		c.MaxSemaphores = d.MaxSemaphores
	}
	if c.MaxMutexes <= 0 {
		c.MaxMutexes = d.MaxMutexes
	}
	if c.MaxQueues <= 0 {
		c.MaxQueues = d.MaxQueues
	}
	if c.MaxEventGroups <= 0 {
		c.MaxEventGroups = d.MaxEventGroups
	}
	if c.MaxTimers <= 0 {
		c.MaxTimers = d.MaxTimers
	}
	if c.MaxPools <= 0 {
		c.MaxPools = d.MaxPools
	}
	if c.Timeslice == 0 {
		c.Timeslice = d.Timeslice
	}
	if c.TimerTaskPriority == 0 {
		c.TimerTaskPriority = d.TimerTaskPriority
	}
	if c.TimerTaskStack == 0 {
		c.TimerTaskStack = d.TimerTaskStack
	}
	return c
}

// Hardware is the set of platform services the kernel runs on.
type Hardware struct {
	Clock    hal.Clock
	Timer    hal.Timer
	Critical hal.Critical
	Switcher hal.ContextSwitcher
}

// HardwareFrom picks the kernel services out of a HAL.
func HardwareFrom(h hal.HAL) Hardware {
	return Hardware{
		Clock:    h.Clock(),
		Timer:    h.Timer(),
		Critical: h.Critical(),
		Switcher: h.Switcher(),
	}
}

func (hw Hardware) valid() bool {
	return hw.Clock != nil && hw.Timer != nil && hw.Critical != nil && hw.Switcher != nil
}
