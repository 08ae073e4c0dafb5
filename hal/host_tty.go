//go:build !tinygo

package hal

import (
	"context"
	"fmt"

	"github.com/mattn/go-tty"
)

// readTTY puts the terminal in raw mode and forwards every key press to kbd
// until ctx is done. The returned func restores the terminal.
func readTTY(ctx context.Context, kbd *hostKeyboard) (func(), error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("hal: open tty: %w", err)
	}
	go func() {
		for ctx.Err() == nil {
			r, err := t.ReadRune()
			if err != nil {
				return
			}
			kbd.push(keyFromRune(r))
		}
	}()
	return func() { _ = t.Close() }, nil
}

func keyFromRune(r rune) KeyEvent {
	switch r {
	case '\r', '\n':
		return KeyEvent{Code: KeyEnter, Press: true}
	case 0x1b:
		return KeyEvent{Code: KeyEscape, Press: true}
	case 0x7f, 0x08:
		return KeyEvent{Code: KeyBackspace, Press: true}
	case '\t':
		return KeyEvent{Code: KeyTab, Press: true}
	}
	return KeyEvent{Press: true, Rune: r}
}
