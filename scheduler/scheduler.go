// Package scheduler implements the runqueue state machine, the wake/select/
// switch passes, and the blocking primitives (§4.4-§4.7). It is deliberately
// ignorant of real hardware: the GDT and the memory manager are driven
// through the descriptor.Table and memzone.Manager contracts, and the
// hardware far-jump is driven through the Switcher contract, so the whole
// package is unit-testable on a development host.
package scheduler

import (
	"fmt"

	"github.com/MSylvia/serenity/descriptor"
	"github.com/MSylvia/serenity/memzone"
	"github.com/MSylvia/serenity/task"
)

// Quantum is the number of timer ticks granted per schedule (§6).
const Quantum = 5

// IdleName is the name the kernel idle task is constructed with (§6).
const IdleName = "colonel"

// Switcher performs the hardware task switch: on real hardware, the far
// jump through the task's TSS selector. The scheduler calls SwitchTo only
// after the GDT has been rewritten and flushed for the incoming task.
type Switcher interface {
	SwitchTo(t *task.Task)
}

// RecordingSwitcher is a Switcher that just remembers what it was asked to
// switch to, for use in tests and in any host build that does not actually
// execute task bodies.
type RecordingSwitcher struct {
	Switches []*task.Task
}

// SwitchTo implements Switcher.
func (s *RecordingSwitcher) SwitchTo(t *task.Task) {
	s.Switches = append(s.Switches, t)
}

// Context is the process-wide scheduler state (§3 "Process-wide state"):
// the runqueue, the current/idle task pointers, uptime, and the live/blocked
// task counters. It is the Go realization of the global singletons §9 calls
// out; tests construct their own with fake collaborators.
type Context struct {
	gdt      *descriptor.Table
	mem      memzone.Manager
	switcher Switcher
	irq      irqToken

	runqueue Runqueue
	idle     *task.Task
	current  *task.Task

	uptime  uint64
	nextPid int

	liveTasks    int
	blockedTasks int
}

// NewContext constructs a scheduler context and its idle task (§4.3: "The
// kernel idle task is constructed with pid 0 and is not inserted in the
// runqueue"). Idle is ring-0 and never itself scheduled off the runqueue.
func NewContext(gdt *descriptor.Table, mem memzone.Manager, sw Switcher) (*Context, error) {
	c := &Context{gdt: gdt, mem: mem, switcher: sw, nextPid: 1}

	idle, err := task.New(mem, gdt, 0, IdleName, task.AnyHandle, task.Ring0, task.EntryPoint{Kernel: func() {}})
	if err != nil {
		return nil, fmt.Errorf("scheduler: construct idle task: %w", err)
	}
	c.idle = idle
	return c, nil
}

// Current returns the task presently marked Running, or nil before the
// first schedule.
func (c *Context) Current() *task.Task { return c.current }

// Idle returns the singleton idle task.
func (c *Context) Idle() *task.Task { return c.idle }

// Uptime returns the monotonic tick counter.
func (c *Context) Uptime() uint64 { return c.uptime }

// LiveTasks returns the count of spawned, non-destroyed tasks (the idle
// task is not counted).
func (c *Context) LiveTasks() int { return c.liveTasks }

// BlockedTasks returns the count of tasks presently in a blocked state.
func (c *Context) BlockedTasks() int { return c.blockedTasks }

// Runqueue exposes the runqueue for inspection (ps-style tooling, tests).
// Callers must not mutate it directly; all mutation goes through Spawn,
// Exit, and Crash.
func (c *Context) Runqueue() *Runqueue { return &c.runqueue }

// Spawn constructs a new task and inserts it at the runqueue head (§4.3
// step 9), ready to be picked up by the next scheduling pass.
func (c *Context) Spawn(name string, handle task.Handle, ring task.Ring, entry task.EntryPoint) (*task.Task, error) {
	// Held across task.New too: a ring-3 task allocates and writes its LDT
	// slot in the GDT during construction.
	c.irq.acquire()
	defer c.irq.release()

	pid := c.nextPid
	c.nextPid++

	t, err := task.New(c.mem, c.gdt, pid, name, handle, ring, entry)
	if err != nil {
		return nil, fmt.Errorf("scheduler: spawn %q: %w", name, err)
	}
	t.TicksLeft = Quantum

	c.runqueue.Insert(t)
	c.liveTasks++

	return t, nil
}

// taskByHandle finds a live task (idle included) by IPC handle.
func (c *Context) taskByHandle(h task.Handle) *task.Task {
	if c.idle.Handle == h {
		return c.idle
	}
	for _, t := range c.runqueue.Tasks() {
		if t.Handle == h {
			return t
		}
	}
	return nil
}

// Tick advances uptime by one and, if the current task's quantum has
// expired, preempts it by running the scheduler (§4.4).
func (c *Context) Tick() {
	c.irq.acquire()
	c.uptime++
	cur := c.current
	c.irq.release()

	if cur == nil {
		return
	}
	if cur.TicksLeft > 0 {
		cur.TicksLeft--
	}
	if cur.TicksLeft == 0 {
		c.Yield()
	}
}

// wakePass transitions blocked tasks whose wake predicate holds back to
// Runnable (§4.4 step 1). Must be called with irq held.
func (c *Context) wakePass() {
	c.irq.mustBeHeld()
	for _, t := range c.runqueue.Tasks() {
		switch t.State {
		case task.BlockedReceive:
			if t.Mailbox.Msg.Valid || t.Mailbox.Notifies {
				c.unblock(t)
			}
		case task.BlockedSend:
			peer := c.taskByHandle(t.Mailbox.Dst)
			if peer != nil && peer.State == task.BlockedReceive && peer.Mailbox.AcceptsFrom(t.Handle) {
				c.unblock(t)
			}
		case task.BlockedSleep:
			if t.WakeupTime <= c.uptime {
				c.unblock(t)
			}
		}
	}
}

func (c *Context) unblock(t *task.Task) {
	if err := t.Unblock(); err != nil {
		panic(fmt.Sprintf("scheduler: %v", err))
	}
	c.blockedTasks--
}

// selectNext runs the selection pass (§4.4 step 2): rotate the runqueue
// until a Runnable/Running task reaches the head, or fall back to idle if a
// full rotation finds none. Must be called with irq held.
func (c *Context) selectNext() *task.Task {
	c.irq.mustBeHeld()
	prevHead := c.runqueue.Head()
	if prevHead == nil {
		return c.idle
	}

	for {
		head := c.runqueue.RotateToTail()
		if head.State == task.Runnable || head.State == task.Running {
			return head
		}
		if head == prevHead {
			return c.idle
		}
	}
}

// scheduleNewTask runs one full scheduling pass and commits a context switch
// if the selected task differs from current (§4.4). It reports whether a
// switch actually happened (mirrors the original's bool "did we switch").
func (c *Context) scheduleNewTask() bool {
	c.irq.acquire()
	defer c.irq.release()

	if c.current == nil {
		// The first-ever call goes to idle, establishing a known resumption
		// point (§4.4 final paragraph).
		return c.contextSwitch(c.idle)
	}

	c.wakePass()
	next := c.selectNext()
	return c.contextSwitch(next)
}

// contextSwitch effects §4.4 step 3. Must be called with irq held.
func (c *Context) contextSwitch(next *task.Task) bool {
	c.irq.mustBeHeld()
	next.TicksLeft = Quantum

	if c.current == next {
		return false
	}

	if c.current != nil {
		if c.current.TSS.Cs&3 != c.current.TSS.Ss&3 { // sanity check carried from original
			panic(fmt.Sprintf("scheduler: cs/ss RPL mismatch on outgoing task %s", c.current))
		}
		if c.current.State == task.Running {
			c.current.State = task.Runnable
		}
		if err := c.mem.UnmapRegionsFor(c.current); err != nil {
			panic(fmt.Sprintf("scheduler: unmap regions for %s: %v", c.current, err))
		}
	}

	if next.TSS.Cs&3 != next.TSS.Ss&3 {
		panic(fmt.Sprintf("scheduler: cs/ss RPL mismatch on incoming task %s", next))
	}

	if err := c.mem.MapRegionsFor(next); err != nil {
		panic(fmt.Sprintf("scheduler: map regions for %s: %v", next, err))
	}

	c.current = next
	next.State = task.Running

	if next.Selector == 0 {
		next.Selector = c.gdt.Allocate()
	}
	c.gdt.WriteTSSDescriptor(next.Selector, next.TSSAddress(), true)
	c.gdt.Flush()

	c.switcher.SwitchTo(next)
	return true
}

// Yield voluntarily enters the scheduler (§4.6). If selection produced a
// different task, the switch has already been committed by the time Yield
// returns (the caller's own task body resumes only when it is next
// scheduled back in, which on real hardware is exactly the far-jump
// semantics; on a host build, callers that need "resume later" must drive
// their own cooperative loop).
func (c *Context) Yield() {
	c.scheduleNewTask()
}

// Block transitions the running task t into state and marks it blocked in
// the process-wide counters (§4.6). It does not itself yield.
func (c *Context) Block(t *task.Task, state task.State) error {
	if t != c.current {
		return fmt.Errorf("scheduler: Block called for %s, which is not current", t)
	}
	if err := t.Block(state); err != nil {
		return err
	}
	c.blockedTasks++
	return nil
}

// Sleep blocks t until uptime reaches ticks from now, then yields (§4.6).
func (c *Context) Sleep(t *task.Task, ticks uint64) error {
	t.WakeupTime = c.uptime + ticks
	if err := c.Block(t, task.BlockedSleep); err != nil {
		return err
	}
	c.Yield()
	return nil
}

// Exit tears t down (§4.7): mark Exiting, remove from the runqueue, schedule
// a successor, then destroy the task object.
func (c *Context) Exit(t *task.Task, status int) error {
	return c.teardown(t, task.Exiting)
}

// Crash tears t down identically to Exit but marks it Crashing first,
// mirroring the fault-handler entry point taskDidCrash (§4.5).
func (c *Context) Crash(t *task.Task) error {
	return c.teardown(t, task.Crashing)
}

func (c *Context) teardown(t *task.Task, terminal task.State) error {
	c.irq.acquire()
	t.State = terminal
	c.runqueue.Remove(t)
	c.liveTasks--
	c.irq.release()

	if !c.scheduleNewTask() && c.current == t {
		return fmt.Errorf("scheduler: failed to schedule a successor for %s", t)
	}

	return t.Destroy()
}
