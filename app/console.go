package app

import (
	"sync"

	"kestrel/hal"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	consoleFontHeight = 10
	consoleFontOffset = 7
)

// Console is a Logger that renders lines on the framebuffer.
type Console struct {
	mu sync.Mutex
	d  *fbDisplay
	t  *tinyterm.Terminal
}

// NewConsole returns a console on disp, or nil if there is no usable
// RGB565 framebuffer.
func NewConsole(disp hal.Display) *Console {
	if disp == nil {
		return nil
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return nil
	}
	d := newFBDisplay(fb)
	if !d.ok() {
		return nil
	}
	c := &Console{d: d}
	c.reset()
	return c
}

func (c *Console) reset() {
	_ = c.d.FillRectangle(0, 0, int16(c.d.w), int16(c.d.h), black)
	c.d.SetScroll(0)
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: consoleFontHeight,
		FontOffset: consoleFontOffset,
	})
	_ = c.d.Display()
}

// Clear blanks the console.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Console) WriteLineString(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.t.Write([]byte(s))
	_, _ = c.t.Write(crlf)
	_ = c.d.Display()
}

func (c *Console) WriteLineBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.t.Write(b)
	_, _ = c.t.Write(crlf)
	_ = c.d.Display()
}

var crlf = []byte("\r\n")

// multiLogger fans lines out to several loggers.
type multiLogger []hal.Logger

func newMultiLogger(ls ...hal.Logger) multiLogger {
	var m multiLogger
	for _, l := range ls {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m multiLogger) WriteLineString(s string) {
	for _, l := range m {
		l.WriteLineString(s)
	}
}

func (m multiLogger) WriteLineBytes(b []byte) {
	for _, l := range m {
		l.WriteLineBytes(b)
	}
}
