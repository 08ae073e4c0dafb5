//go:build tinygo && !baremetal

package hal

import (
	"fmt"
	"runtime"
)

type tinyGoHostHAL struct {
	logger *tinyGoHostLogger
	led    *tinyGoHostLED
	fb     *hostFramebuffer
	kbd    *tinyGoHostKeyboard
	clock  *MonotonicClock
	timer  *OneShotTimer
	crit   *MutexCritical
	sw     *GoroutineSwitcher
}

// New returns a TinyGo-on-host HAL implementation.
//
// This is used by `tinygo run` targets like linux/wasm where there is no MCU pin mapping.
func New() HAL {
	l := &tinyGoHostLogger{}
	return &tinyGoHostHAL{
		logger: l,
		led:    &tinyGoHostLED{logger: l},
		fb:     newHostFramebuffer(320, 320),
		kbd:    &tinyGoHostKeyboard{},
		clock:  NewMonotonicClock(),
		timer:  &OneShotTimer{},
		crit:   &MutexCritical{},
		sw:     NewGoroutineSwitcher(),
	}
}

func (h *tinyGoHostHAL) Logger() Logger            { return h.logger }
func (h *tinyGoHostHAL) LED() LED                  { return h.led }
func (h *tinyGoHostHAL) Display() Display          { return tinyGoHostDisplay{fb: h.fb} }
func (h *tinyGoHostHAL) Input() Input              { return tinyGoHostInput{kbd: h.kbd} }
func (h *tinyGoHostHAL) Clock() Clock              { return h.clock }
func (h *tinyGoHostHAL) Timer() Timer              { return h.timer }
func (h *tinyGoHostHAL) Critical() Critical        { return h.crit }
func (h *tinyGoHostHAL) Switcher() ContextSwitcher { return h.sw }

type tinyGoHostDisplay struct {
	fb Framebuffer
}

func (d tinyGoHostDisplay) Framebuffer() Framebuffer { return d.fb }

type tinyGoHostInput struct {
	kbd Keyboard
}

func (in tinyGoHostInput) Keyboard() Keyboard { return in.kbd }

type tinyGoHostLogger struct{}

func (l *tinyGoHostLogger) WriteLineString(s string) {
	println(s)
}

func (l *tinyGoHostLogger) WriteLineBytes(b []byte) {
	println(string(b))
}

type tinyGoHostLED struct {
	on     bool
	logger *tinyGoHostLogger
}

func (l *tinyGoHostLED) High() {
	l.on = true
	l.logger.WriteLineString(fmt.Sprintf("led: HIGH (tinygo/%s)", runtime.GOOS))
}

func (l *tinyGoHostLED) Low() {
	l.on = false
	l.logger.WriteLineString(fmt.Sprintf("led: LOW (tinygo/%s)", runtime.GOOS))
}

// tinyGoHostKeyboard has no input source; its channel never delivers.
type tinyGoHostKeyboard struct{}

func (k *tinyGoHostKeyboard) Events() <-chan KeyEvent { return nil }
