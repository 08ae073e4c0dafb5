package app

import (
	"image/color"

	"kestrel/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay adapts a hal.Framebuffer to tinyterm. Drawing goes to a back
// buffer laid out like display RAM; Display copies it to the framebuffer
// starting at the scroll line, the way a panel with a vertical scroll
// register shows it.
type fbDisplay struct {
	fb     hal.Framebuffer
	back   []byte
	stride int
	w, h   int
	scroll int
	rot    drivers.Rotation
}

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	d := &fbDisplay{fb: fb}
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 || fb.Buffer() == nil {
		return d
	}
	d.w, d.h = fb.Width(), fb.Height()
	d.stride = fb.StrideBytes()
	d.back = make([]byte, d.stride*d.h)
	return d
}

func (d *fbDisplay) ok() bool { return d.back != nil }

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.w), int16(d.h)
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if !d.ok() {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.w || iy < 0 || iy >= d.h {
		return
	}
	pixel := hal.RGB565(c.R, c.G, c.B)
	off := iy*d.stride + ix*2
	d.back[off] = byte(pixel)
	d.back[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	if !d.ok() {
		return nil
	}
	buf := d.fb.Buffer()
	split := d.scroll * d.stride
	n := copy(buf, d.back[split:])
	copy(buf[n:], d.back[:split])
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.ok() {
		return nil
	}
	x0 := clampInt(int(x), 0, d.w)
	y0 := clampInt(int(y), 0, d.h)
	x1 := clampInt(int(x)+int(width), 0, d.w)
	y1 := clampInt(int(y)+int(height), 0, d.h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := hal.RGB565(c.R, c.G, c.B)
	lo := byte(pixel)
	hi := byte(pixel >> 8)
	for py := y0; py < y1; py++ {
		row := py * d.stride
		for px := x0; px < x1; px++ {
			d.back[row+px*2] = lo
			d.back[row+px*2+1] = hi
		}
	}
	return nil
}

func (d *fbDisplay) SetScroll(line int16) {
	if d.h == 0 {
		return
	}
	s := int(line) % d.h
	if s < 0 {
		s += d.h
	}
	d.scroll = s
}

// SetRotation records the rotation; the framebuffer is always drawn upright.
func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	d.rot = rotation
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
