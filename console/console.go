package console

import (
	"fmt"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"github.com/MSylvia/serenity/scheduler"
	"github.com/MSylvia/serenity/task"
)

// BannerFont is the default font the scheduler banner is rasterized with.
// proggy is the smallest bitmap font tinyfont ships, appropriate for the
// single status line the original VGA-text banner occupied.
var BannerFont tinyfont.Fonter = &proggy.TinySZ8pt7b

// Console owns the scrollback terminal the scheduler banner lines are
// written to. It implements scheduler.Switcher so it can sit between the scheduler and
// the real hardware switcher, logging every context switch without the
// scheduler package needing to know a console exists.
type Console struct {
	fb   *Framebuffer
	term *tinyterm.Terminal
	next scheduler.Switcher

	bannerY int16
}

// New wires a Console atop fb, writing one banner line per context switch
// into a scrollback terminal covering the whole surface, and forwarding every
// switch to next once the banner line has been written.
func New(fb *Framebuffer, next scheduler.Switcher) *Console {
	term := tinyterm.NewTerminal(fb)
	term.Configure(&tinyterm.Config{
		Font:              BannerFont.(*tinyfont.Font),
		FontHeight:        10,
		FontOffset:        8,
		UseSoftwareScroll: true,
	})
	return &Console{fb: fb, term: term, next: next, bannerY: 0}
}

// Framebuffer returns the backing surface, for cmd/kerneld's present loop.
func (c *Console) Framebuffer() *Framebuffer { return c.fb }

// Terminal exposes the scrollback terminal, e.g. for the shell to print to.
func (c *Console) Terminal() *tinyterm.Terminal { return c.term }

// SwitchTo implements scheduler.Switcher. It redraws the scheduler banner
// for the incoming task — the functionality the original kernel's
// drawSchedulerBanner shipped with disabled — then forwards the switch to
// the wrapped Switcher (on real hardware, the far jump; in tests, whatever
// recording double the caller installed).
func (c *Console) SwitchTo(t *task.Task) {
	c.drawSchedulerBanner(t)
	if c.next != nil {
		c.next.SwitchTo(t)
	}
}

// drawSchedulerBanner paints "#pid name eip state" to the scrollback log.
// The original computed eip from the outgoing trap frame; a Go task has no
// single fixed entry address to freeze once it is running, so TSS.Eip (the
// task's last-known instruction pointer at construction, or the seeded
// entry for a ring-3 task that has not yet run) stands in for it.
func (c *Console) drawSchedulerBanner(t *task.Task) {
	fmt.Fprintf(c.term, "#%d %s eip=%#08x %s\n", t.Pid, t.Name, t.TSS.Eip, t.State)
}

// Log writes a free-form line to the scrollback. cmd/kerneld routes the
// shell's output through it; nothing calls it for spawn, block or exit
// events.
func (c *Console) Log(format string, args ...interface{}) {
	fmt.Fprintf(c.term, format+"\n", args...)
}
