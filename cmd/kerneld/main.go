// Command kerneld boots the scheduler core, wires the debug console and
// shell to it, and drives the timer/scheduling loop — the host analogue of
// the teacher's main_host.go / main_tinygo.go split (this module only ever
// targets a host build).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/MSylvia/serenity/console"
	"github.com/MSylvia/serenity/descriptor"
	"github.com/MSylvia/serenity/memzone"
	"github.com/MSylvia/serenity/scheduler"
	"github.com/MSylvia/serenity/shell"
	"github.com/MSylvia/serenity/syscall"
	"github.com/MSylvia/serenity/task"
	"github.com/MSylvia/serenity/vfs"
)

const (
	pageDirectoryBase = 0x00100000
	fbWidth           = 320
	fbHeight          = 200
	hz                = 100
)

func main() {
	headless := flag.Bool("headless", false, "Run the scheduler loop without opening a window.")
	ticks := flag.Uint64("ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.Parse()

	k, err := boot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kerneld:", err)
		os.Exit(1)
	}

	if *headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := k.runHeadless(ctx, *ticks); err != nil && err != context.Canceled {
			fmt.Fprintln(os.Stderr, "kerneld:", err)
			os.Exit(1)
		}
		return
	}

	ebiten.SetWindowTitle("kerneld")
	ebiten.SetWindowSize(fbWidth*2, fbHeight*2)
	ebiten.SetTPS(hz)
	if err := ebiten.RunGame(k); err != nil {
		fmt.Fprintln(os.Stderr, "kerneld:", err)
		os.Exit(1)
	}
}

// kernel bundles the scheduler core and its ambient services.
type kernel struct {
	gdt     *descriptor.Table
	mem     memzone.Manager
	sched   *scheduler.Context
	console *console.Console
	shell   *shell.Shell

	img *image.RGBA
	fb  *ebiten.Image
}

func boot() (*kernel, error) {
	gdt := descriptor.NewTable()
	mem := memzone.NewHostManager(pageDirectoryBase)

	surface := console.NewFramebuffer(fbWidth, fbHeight)
	con := console.New(surface, noopSwitcher{})

	k := &kernel{gdt: gdt, mem: mem, console: con}

	sched, err := scheduler.NewContext(gdt, mem, con)
	if err != nil {
		return nil, fmt.Errorf("boot: scheduler: %w", err)
	}
	k.sched = sched

	fs := vfs.New()
	calls := syscall.New(sched, fs)
	k.shell = shell.New(sched, calls, loggingWriter{k.console})

	return k, nil
}

// noopSwitcher stands in for the real hardware far-jump: this module never
// executes arbitrary task bodies in-process (§4.4 design notes), so the
// console's SwitchTo wrapper has nothing further to delegate to here.
type noopSwitcher struct{}

func (noopSwitcher) SwitchTo(t *task.Task) {}

type loggingWriter struct{ c *console.Console }

func (w loggingWriter) Write(p []byte) (int, error) {
	w.c.Log("%s", p)
	return len(p), nil
}

func (k *kernel) runHeadless(ctx context.Context, maxTicks uint64) error {
	d := time.Second / time.Duration(hz)
	t := time.NewTicker(d)
	defer t.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			k.step()
			n++
			if maxTicks > 0 && n >= maxTicks {
				return nil
			}
		}
	}
}

func (k *kernel) step() {
	k.sched.Tick()
}

// Update implements ebiten.Game.
func (k *kernel) Update() error {
	k.step()
	return nil
}

// Draw implements ebiten.Game.
func (k *kernel) Draw(screen *ebiten.Image) {
	if k.img == nil {
		k.img = image.NewRGBA(image.Rect(0, 0, fbWidth, fbHeight))
		k.fb = ebiten.NewImage(fbWidth, fbHeight)
	}

	pix := make([]color.RGBA, fbWidth*fbHeight)
	k.console.Framebuffer().Snapshot(pix)
	for i, c := range pix {
		j := i * 4
		k.img.Pix[j+0] = c.R
		k.img.Pix[j+1] = c.G
		k.img.Pix[j+2] = c.B
		k.img.Pix[j+3] = 0xFF
	}
	k.fb.ReplacePixels(k.img.Pix)
	screen.DrawImage(k.fb, nil)
}

// Layout implements ebiten.Game.
func (k *kernel) Layout(outsideWidth, outsideHeight int) (int, int) {
	return fbWidth, fbHeight
}

// runShellLine reads and dispatches a single command line; available to a
// future stdin-driven debug console. It is not wired to the window's input:
// no keyboard capture is implemented.
func runShellLine(s *shell.Shell, r *bufio.Reader) error {
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	return s.Run(line)
}
