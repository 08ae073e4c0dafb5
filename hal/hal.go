package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var ErrNotImplemented = errors.New("not implemented")

// Clock is a monotonic nanosecond time source.
type Clock interface {
	Now() uint64
}

// Timer is the single one-shot hardware timer the kernel reprograms to the
// next pending deadline.
type Timer interface {
	// Set arms the timer to fire d nanoseconds from now, replacing any
	// pending deadline. d == 0 fires as soon as possible.
	Set(d uint64)
	// Stop disarms the timer.
	Stop()
	// Remaining returns the time left until the armed deadline, or 0.
	Remaining() uint64
	// SetHandler installs the expiry interrupt entry point.
	SetHandler(fn func())
}

// CriticalState is the interrupt state saved by Critical.Enter.
type CriticalState uintptr

// Critical masks interrupts (or their host equivalent) for mutual exclusion
// with interrupt handlers. Sections do not nest.
type Critical interface {
	Enter() CriticalState
	Exit(CriticalState)
}

// ContextID names an execution context owned by a ContextSwitcher.
type ContextID uint16

// NoContext stands for "no task": the idle loop or an interrupt handler.
const NoContext ContextID = 0

// ContextSwitcher performs the architecture-specific part of a task switch.
type ContextSwitcher interface {
	// Prepare builds the initial context for id on stack so that the first
	// switch into it calls entry. It returns the initial stack index.
	Prepare(id ContextID, stack []uint32, entry func()) (sp int, err error)
	// Switch transfers the CPU from one context to another. When from is a
	// task context it does not return until that context is switched back
	// in. Either side may be NoContext.
	Switch(from, to ContextID)
	// Release drops a context that will never run again.
	Release(id ContextID)
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	Display() Display
	Input() Input

	Clock() Clock
	Timer() Timer
	Critical() Critical
	Switcher() ContextSwitcher
}
