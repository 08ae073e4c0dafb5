package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"kestrel/hal"
	"kestrel/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// installPanicHandler logs the first task panic with its stack and paints
// it on the framebuffer. The kernel keeps running; the task exits.
func installPanicHandler(h hal.HAL, log hal.Logger) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if log != nil {
			for _, line := range lines {
				log.WriteLineString(line)
			}
		}
		if disp := h.Display(); disp != nil {
			drawPanic(newFBDisplay(disp.Framebuffer()), lines)
		}
	})
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"Kestrel Panic:",
		"task: " + info.Task,
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func drawPanic(d *fbDisplay, lines []string) {
	if !d.ok() {
		return
	}
	font := &proggy.TinySZ8pt7b
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		return
	}

	_ = d.FillRectangle(0, 0, int16(d.w), int16(d.h), white)
	cols := int16(d.w) / fontWidth
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y)+consoleFontHeight > d.h {
				_ = d.Display()
				return
			}
			chunk, rest := takeRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, y+consoleFontOffset, r, black)
				x += fontWidth
			}
			y += consoleFontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = d.Display()
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
