//go:build !tinygo

// Package console revives the original kernel's drawSchedulerBanner, which
// painted the running task's pid/name/eip to VGA text memory but shipped
// disabled (its first statement was a bare return) for want of a lock that
// did not exist yet (§9). Framebuffer is the host half of that split: a
// software RGBA surface satisfying tinyterm.Displayer, presented through
// cmd/kerneld's ebiten window on a development host and, on real target
// hardware, through whatever tinygo.org/x/drivers.Displayer the board
// provides instead.
package console

import (
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
)

// Framebuffer is an in-memory RGBA surface implementing the Displayer
// contract tinyterm.Terminal and tinygo.org/x/drivers consumers expect.
type Framebuffer struct {
	mu     sync.Mutex
	width  int16
	height int16
	pix    []color.RGBA
	scroll int16
}

// NewFramebuffer allocates a width x height surface, cleared to black.
func NewFramebuffer(width, height int16) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		pix:    make([]color.RGBA, int(width)*int(height)),
	}
}

// Size implements drivers.Displayer.
func (f *Framebuffer) Size() (x, y int16) { return f.width, f.height }

// SetPixel implements drivers.Displayer.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	f.mu.Lock()
	f.pix[int(y)*int(f.width)+int(x)] = c
	f.mu.Unlock()
}

// Display implements drivers.Displayer. A software framebuffer has nothing
// to flush to; the pixel array is already the presented state.
func (f *Framebuffer) Display() error { return nil }

// FillRectangle implements tinyterm.Displayer.
func (f *Framebuffer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for row := y; row < y+height; row++ {
		if row < 0 || row >= f.height {
			continue
		}
		for col := x; col < x+width; col++ {
			if col < 0 || col >= f.width {
				continue
			}
			f.pix[int(row)*int(f.width)+int(col)] = c
		}
	}
	return nil
}

// SetScroll implements tinyterm.Displayer. Software scrolling only; the
// terminal is configured with UseSoftwareScroll, so this is never called
// with a nonzero line in practice but is wired for drivers that expect it.
func (f *Framebuffer) SetScroll(line int16) {
	f.mu.Lock()
	f.scroll = line
	f.mu.Unlock()
}

// SetRotation implements tinyterm.Displayer. The host surface has no notion
// of physical rotation.
func (f *Framebuffer) SetRotation(rotation drivers.Rotation) error { return nil }

// Snapshot copies the current pixel buffer for presentation (cmd/kerneld's
// ebiten draw loop calls this once per frame).
func (f *Framebuffer) Snapshot(dst []color.RGBA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(dst, f.pix)
}
