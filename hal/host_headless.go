//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"os"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	// Duration stops the run after this long. Zero runs until ctx is done.
	Duration time.Duration
	// TTY reads raw key presses from the controlling terminal.
	TTY bool
}

// RunHeadless runs run on a host HAL without opening a window. It returns
// nil when the duration elapses.
func RunHeadless(ctx context.Context, run func(context.Context, HAL) error, cfg HeadlessConfig) error {
	h := newHost(os.Stdout)
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	if cfg.TTY {
		stop, err := readTTY(ctx, h.kbd)
		if err != nil {
			return err
		}
		defer stop()
	}

	err := run(ctx, h)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
