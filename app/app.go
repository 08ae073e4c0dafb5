package app

import (
	"context"
	"fmt"

	"kestrel/hal"
	"kestrel/internal/buildinfo"
	"kestrel/kernel"
	"kestrel/kernel/tickless"
)

// Config selects what Run starts on top of the kernel.
type Config struct {
	// Demo starts the demo workload.
	Demo bool
	// Console mirrors log lines on the framebuffer.
	Console bool

	// Timeslice is the round-robin slice in ns. Zero keeps the default.
	Timeslice uint64
	// Policy bounds the hardware timer period. Nil programs exact deadlines.
	Policy tickless.Policy

	// StatsEvery is the stats report period in ns. Zero uses 5s.
	StatsEvery uint64
}

const defaultStatsEvery = 5_000_000_000

// System is a started kernel plus the application objects on it.
type System struct {
	K    *kernel.Kernel
	Log  hal.Logger
	demo *demo
}

// New builds and starts the kernel on h.
func New(h hal.HAL, cfg Config) (*System, error) {
	var log hal.Logger = h.Logger()
	if cfg.Console {
		if c := NewConsole(h.Display()); c != nil {
			log = newMultiLogger(h.Logger(), c)
		}
	}
	bootStep(log, "kernel")

	installPanicHandler(h, log)

	k, err := kernel.New(kernel.Config{
		Timeslice:   cfg.Timeslice,
		DelayPolicy: cfg.Policy,
		Logger:      log,
	}, kernel.HardwareFrom(h))
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	k.SetFaultHandler(func(f kernel.Fault) {
		log.WriteLineString("fault: " + f.String())
	})
	log.WriteLineString(fmt.Sprintf("Kestrel %s (kernel %s)", buildinfo.String(), kernel.Version))

	s := &System{K: k, Log: log}
	if cfg.Demo {
		bootStep(log, "demo")
		if cfg.StatsEvery == 0 {
			cfg.StatsEvery = defaultStatsEvery
		}
		d, err := newDemo(k, h, log, cfg.StatsEvery)
		if err != nil {
			return nil, fmt.Errorf("demo: %w", err)
		}
		s.demo = d
	}

	bootStep(log, "start")
	if err := k.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	bootStep(log, "running")
	return s, nil
}

// Key forwards a key press into the running system, as an interrupt would.
func (s *System) Key(ev hal.KeyEvent) {
	if s.demo != nil {
		s.demo.key(ev)
	}
}

// Stop shuts the kernel down.
func (s *System) Stop() error {
	return s.K.Shutdown()
}

// Run starts the system on h, feeds it keyboard events, and shuts it down
// when ctx ends.
func Run(ctx context.Context, h hal.HAL, cfg Config) error {
	s, err := New(h, cfg)
	if err != nil {
		return err
	}

	var keys <-chan hal.KeyEvent
	if in := h.Input(); in != nil {
		if kbd := in.Keyboard(); kbd != nil {
			keys = kbd.Events()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return s.Stop()
		case ev := <-keys:
			s.Key(ev)
		}
	}
}
