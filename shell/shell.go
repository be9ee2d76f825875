// Package shell is the host analogue of the teacher's
// sparkos/services/shell: a line-oriented command dispatcher, here driving
// a live *scheduler.Context instead of the teacher's kernel.Context IPC
// surface (§4.9).
package shell

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/shlex"

	"github.com/MSylvia/serenity/scheduler"
	"github.com/MSylvia/serenity/syscall"
	"github.com/MSylvia/serenity/task"
)

// Shell dispatches tokenized command lines against a scheduler context.
type Shell struct {
	Sched *scheduler.Context
	Calls *syscall.Adapters
	Out   io.Writer
}

// New returns a Shell bound to sched, with calls as the syscall surface any
// spawn/kill commands go through, writing output to out.
func New(sched *scheduler.Context, calls *syscall.Adapters, out io.Writer) *Shell {
	return &Shell{Sched: sched, Calls: calls, Out: out}
}

// Run tokenizes line with shlex (so quoted task names and future flags work
// the way a real shell's would) and dispatches to the matching builtin.
// Unknown commands and parse errors are reported, never panicked.
func (s *Shell) Run(line string) error {
	fields, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("shell: parse %q: %w", line, err)
	}
	if len(fields) == 0 {
		return nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "ps":
		return s.cmdPS(args)
	case "spawn":
		return s.cmdSpawn(args)
	case "kill":
		return s.cmdKill(args)
	case "uptime":
		return s.cmdUptime(args)
	default:
		return fmt.Errorf("shell: unknown command %q", cmd)
	}
}

// cmdPS dumps the runqueue plus the idle and current tasks, in the style of
// a process listing.
func (s *Shell) cmdPS(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: ps")
	}
	fmt.Fprintf(s.Out, "PID  NAME            RING  STATE\n")
	s.printTask(s.Sched.Idle())
	for _, t := range s.Sched.Runqueue().Tasks() {
		s.printTask(t)
	}
	return nil
}

func (s *Shell) printTask(t *task.Task) {
	fmt.Fprintf(s.Out, "%-4d %-15s %-5d %s\n", t.Pid, t.Name, t.Ring, t.State)
}

// cmdSpawn constructs a demo ring-3 task with a trivial one-instruction
// body (a halt), the same fixture shape the test suites use, so the shell
// can exercise Spawn without needing a real loaded executable.
func (s *Shell) cmdSpawn(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spawn <name>")
	}
	name := args[0]
	handle := task.Handle(len(s.Sched.Runqueue().Tasks()) + 1)
	t, err := s.Sched.Spawn(name, handle, task.Ring3, task.EntryPoint{Code: []byte{0xF4}})
	if err != nil {
		return fmt.Errorf("shell: spawn %q: %w", name, err)
	}
	fmt.Fprintf(s.Out, "spawned %s\n", t)
	return nil
}

// cmdKill drives syscall.Kill's contract. It always fails, per §4.8/§9 — the
// original kernel's sys$kill path is dead code (it asserts and never
// delivers), and this shell reproduces that rather than inventing delivery
// that was never implemented.
func (s *Shell) cmdKill(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kill <pid>")
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("shell: kill: invalid pid %q", args[0])
	}
	if err := s.Calls.Kill(pid, 0); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "killed %d\n", pid)
	return nil
}

func (s *Shell) cmdUptime(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: uptime")
	}
	fmt.Fprintf(s.Out, "up %d ticks\n", s.Sched.Uptime())
	return nil
}
