//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	clock  *MonotonicClock
	timer  *OneShotTimer
	crit   *MutexCritical
	sw     *GoroutineSwitcher
}

// New returns a host HAL implementation: wall-clock time, an AfterFunc
// timer playing the hardware timer interrupt and one goroutine per task.
func New() HAL {
	return newHost(os.Stdout)
}

func newHost(w io.Writer) *hostHAL {
	logger := &hostLogger{w: w}
	return &hostHAL{
		logger: logger,
		led:    &hostLED{logger: logger},
		fb:     newHostFramebuffer(320, 320),
		kbd:    newHostKeyboard(),
		clock:  NewMonotonicClock(),
		timer:  &OneShotTimer{},
		crit:   &MutexCritical{},
		sw:     NewGoroutineSwitcher(),
	}
}

func (h *hostHAL) Logger() Logger            { return h.logger }
func (h *hostHAL) LED() LED                  { return h.led }
func (h *hostHAL) Display() Display          { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input              { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Clock() Clock              { return h.clock }
func (h *hostHAL) Timer() Timer              { return h.timer }
func (h *hostHAL) Critical() Critical        { return h.crit }
func (h *hostHAL) Switcher() ContextSwitcher { return h.sw }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *hostLogger
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.on {
		l.on = true
		l.logger.WriteLineString("led: HIGH")
	}
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on {
		l.on = false
		l.logger.WriteLineString("led: LOW")
	}
}

// hostKeyboard buffers key events from the window or the terminal.
type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

// push queues ev, dropping it when the consumer is behind.
func (k *hostKeyboard) push(ev KeyEvent) {
	select {
	case k.ch <- ev:
	default:
	}
}
