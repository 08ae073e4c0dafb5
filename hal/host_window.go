//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"
	"image"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"kestrel/internal/buildinfo"
)

// RunWindow opens a desktop window that shows the framebuffer and turns key
// presses into input events, and runs run on a host HAL until the window
// closes or run returns.
func RunWindow(ctx context.Context, run func(context.Context, HAL) error) error {
	h := newHost(os.Stdout)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, h) }()

	g := &hostGame{h: h, ctx: ctx, done: done}
	ebiten.SetWindowTitle("Kestrel (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return g.err
	}
	return err
}

type hostGame struct {
	h       *hostHAL
	ctx     context.Context
	done    <-chan error
	err     error
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
}

func (g *hostGame) Update() error {
	select {
	case err := <-g.done:
		g.err = err
		return ebiten.Termination
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
	}
	g.h.kbd.poll()
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)
	src, dst := g.scratch, g.img.Pix
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, gg, b := RGB888(uint16(src[i]) | uint16(src[i+1])<<8)
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
