//go:build tinygo && baremetal

package hal

import "machine"

// tinyGoHAL has no display or keyboard attached; fb and kbd stay nil.
type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     Framebuffer
	kbd    Keyboard
	clock  *MonotonicClock
	timer  *OneShotTimer
	crit   InterruptCritical
	sw     *GoroutineSwitcher
}

// New returns a Pico 2 (RP2350) HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1. Tasks run on goroutines
// under the TinyGo scheduler; the kernel timer is a runtime timer.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    &pinLED{pin: ledPin},
		clock:  NewMonotonicClock(),
		timer:  &OneShotTimer{},
		sw:     NewGoroutineSwitcher(),
	}
}

func (h *tinyGoHAL) Logger() Logger            { return h.logger }
func (h *tinyGoHAL) LED() LED                  { return h.led }
func (h *tinyGoHAL) Display() Display          { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Input() Input              { return tinyGoInput{kbd: h.kbd} }
func (h *tinyGoHAL) Clock() Clock              { return h.clock }
func (h *tinyGoHAL) Timer() Timer              { return h.timer }
func (h *tinyGoHAL) Critical() Critical        { return h.crit }
func (h *tinyGoHAL) Switcher() ContextSwitcher { return h.sw }
