//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"kestrel/app"
	"kestrel/hal"
	"kestrel/kernel/tickless"
)

func main() {
	var (
		headless  bool
		hcfg      hal.HeadlessConfig
		policy    string
		timeslice time.Duration
		statsIvl  time.Duration
		cfg       = app.Config{Console: true}
	)
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.DurationVar(&hcfg.Duration, "duration", 0, "Stop after this long in headless mode (0 = run until interrupted).")
	flag.BoolVar(&hcfg.TTY, "tty", false, "Read raw key presses from the terminal in headless mode.")
	flag.StringVar(&policy, "policy", "exact", `Timer programming policy: "exact", "adaptive" or a fixed cap such as "1ms".`)
	flag.DurationVar(&timeslice, "timeslice", 0, "Round-robin timeslice (0 = kernel default).")
	flag.DurationVar(&statsIvl, "stats", 5*time.Second, "Demo stats report interval.")
	flag.BoolVar(&cfg.Demo, "demo", true, "Run the demo workload.")
	flag.Parse()

	p, err := parsePolicy(policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.Policy = p
	cfg.Timeslice = uint64(timeslice)
	cfg.StatsEvery = uint64(statsIvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := func(ctx context.Context, h hal.HAL) error {
		return app.Run(ctx, h, cfg)
	}
	if headless {
		cfg.Console = false
		err = hal.RunHeadless(ctx, run, hcfg)
	} else {
		err = hal.RunWindow(ctx, run)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parsePolicy(s string) (tickless.Policy, error) {
	switch s {
	case "", "exact":
		return nil, nil
	case "adaptive":
		return tickless.DefaultPolicy, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("bad -policy %q", s)
	}
	return tickless.FixedPolicy(uint64(d)), nil
}
